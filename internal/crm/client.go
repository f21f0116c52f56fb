// Package crm implements the authenticated CRM REST client. Every call
// attaches the current access token and transparently performs a single
// refresh-and-retry when the CRM answers 401; a second 401 surfaces as an
// AuthError rather than looping on a revoked refresh token.
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/accountsync-cli/internal/resilience"
)

const authScheme = "Zoho-oauthtoken"

// AddressEntry is one CRM record's address plus the refs needed to act on it.
type AddressEntry struct {
	Address  string
	RecordID string
	LayoutID string
}

// API defines the CRM operations the sync pipeline uses.
type API interface {
	ListAddresses(ctx context.Context, module string) ([]AddressEntry, error)
	SearchByAddress(ctx context.Context, module, address string) (string, bool, error)
	CreateRecord(ctx context.Context, module string, fields map[string]any) (string, error)
	UpdateRecord(ctx context.Context, module, id string, fields map[string]any) error
	GetLayoutID(ctx context.Context, module, id string) (string, error)
	UploadPhoto(ctx context.Context, module, id, filePath string) error
}

// Options configures the client.
type Options struct {
	Timeout      time.Duration
	RateLimitRPS float64
}

// Client talks to the CRM REST surface under <api_domain>/crm/v2.
type Client struct {
	http    *resty.Client
	store   SessionStore
	limiter *rate.Limiter

	mu      sync.Mutex
	session *Session
}

// New loads the auth session from store and builds a client.
func New(store SessionStore, opts Options) (*Client, error) {
	sess, err := store.Load()
	if err != nil {
		return nil, err
	}
	if sess.APIDomain == "" {
		return nil, eris.New("crm: session missing api_domain")
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	c := &Client{
		http:    resty.New().SetTimeout(opts.Timeout),
		store:   store,
		session: sess,
	}
	if opts.RateLimitRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), max(int(opts.RateLimitRPS), 1))
	}
	return c, nil
}

func (c *Client) baseURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.APIDomain + "/crm/v2"
}

func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.AccessToken
}

type requestSpec struct {
	method string
	path   string // relative to <api_domain>/crm/v2
	query  map[string]string
	body   any    // JSON-encoded when non-nil
	file   string // multipart "file" part when non-empty
}

func (c *Client) issue(ctx context.Context, spec requestSpec) (*resty.Response, error) {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", authScheme+" "+c.token())
	if spec.query != nil {
		req.SetQueryParams(spec.query)
	}
	if spec.body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(spec.body)
	}
	if spec.file != "" {
		req.SetFile("file", spec.file)
	}
	return req.Execute(spec.method, c.baseURL()+spec.path)
}

// do runs one request through the refresh-once protocol and returns the
// response for any 2xx status.
func (c *Client) do(ctx context.Context, spec requestSpec) (*resty.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "crm: rate limit")
		}
	}

	res, err := c.issue(ctx, spec)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "crm: %s %s", spec.method, spec.path), 0)
	}

	if res.StatusCode() == http.StatusUnauthorized {
		if err := c.refresh(ctx); err != nil {
			return nil, err
		}
		res, err = c.issue(ctx, spec)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrapf(err, "crm: %s %s", spec.method, spec.path), 0)
		}
		if res.StatusCode() == http.StatusUnauthorized {
			return nil, &AuthError{Reason: fmt.Sprintf("%s %s rejected after token refresh", spec.method, spec.path)}
		}
	}

	if res.StatusCode() < 200 || res.StatusCode() > 299 {
		reqErr := &RequestError{Status: res.StatusCode(), Body: string(res.Body())}
		if resilience.IsTransientHTTPStatus(res.StatusCode()) {
			return nil, resilience.NewTransientError(reqErr, res.StatusCode())
		}
		return nil, reqErr
	}
	return res, nil
}

// refresh exchanges the refresh token for a new access token and persists
// the mutated session before any retry is issued.
func (c *Client) refresh(ctx context.Context) error {
	c.mu.Lock()
	tokenURL := c.session.TokenURL
	params := map[string]string{
		"refresh_token": c.session.RefreshToken,
		"client_id":     c.session.ClientID,
		"client_secret": c.session.ClientSecret,
		"grant_type":    "refresh_token",
	}
	c.mu.Unlock()

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Post(tokenURL)
	if err != nil {
		return &AuthError{Reason: "token refresh request failed: " + err.Error()}
	}
	if res.StatusCode() != http.StatusOK {
		return &AuthError{Reason: fmt.Sprintf("token refresh returned status %d", res.StatusCode())}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(res.Body(), &payload); err != nil || payload.AccessToken == "" {
		return &AuthError{Reason: "token refresh returned no access_token"}
	}

	c.mu.Lock()
	c.session.AccessToken = payload.AccessToken
	snapshot := *c.session
	c.mu.Unlock()

	if err := c.store.Save(&snapshot); err != nil {
		return eris.Wrap(err, "crm: persist refreshed session")
	}

	zap.L().Info("crm: access token refreshed")
	return nil
}

// Get issues an authenticated GET and returns the raw body.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	res, err := c.do(ctx, requestSpec{method: http.MethodGet, path: path})
	if err != nil {
		return nil, err
	}
	return res.Body(), nil
}

// Create issues an authenticated POST with a JSON body.
func (c *Client) Create(ctx context.Context, path string, body any) ([]byte, error) {
	res, err := c.do(ctx, requestSpec{method: http.MethodPost, path: path, body: body})
	if err != nil {
		return nil, err
	}
	return res.Body(), nil
}

// Update issues an authenticated PUT with a JSON body.
func (c *Client) Update(ctx context.Context, path string, body any) ([]byte, error) {
	res, err := c.do(ctx, requestSpec{method: http.MethodPut, path: path, body: body})
	if err != nil {
		return nil, err
	}
	return res.Body(), nil
}

// UploadBinary issues an authenticated multipart POST with the file at
// filePath as the "file" part.
func (c *Client) UploadBinary(ctx context.Context, path, filePath string) error {
	_, err := c.do(ctx, requestSpec{method: http.MethodPost, path: path, file: filePath})
	return err
}

// dataEnvelope matches the CRM's {"data":[{...}]} response wrapper.
type dataEnvelope struct {
	Data []map[string]any `json:"data"`
}

func decodeEnvelope(body []byte) (*dataEnvelope, error) {
	var env dataEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, eris.Wrap(err, "crm: decode response")
	}
	return &env, nil
}

func stringField(record map[string]any, key string) string {
	if v, ok := record[key].(string); ok {
		return v
	}
	return ""
}

func layoutIDField(record map[string]any) string {
	if layout, ok := record["$layout_id"].(map[string]any); ok {
		return stringField(layout, "id")
	}
	return ""
}

// ListAddresses returns the Address field and refs of every record in module.
func (c *Client) ListAddresses(ctx context.Context, module string) ([]AddressEntry, error) {
	res, err := c.do(ctx, requestSpec{method: http.MethodGet, path: "/" + module})
	if err != nil {
		return nil, err
	}
	if res.StatusCode() == http.StatusNoContent {
		return nil, nil
	}

	env, err := decodeEnvelope(res.Body())
	if err != nil {
		return nil, err
	}

	entries := make([]AddressEntry, 0, len(env.Data))
	for _, record := range env.Data {
		entries = append(entries, AddressEntry{
			Address:  stringField(record, "Address"),
			RecordID: stringField(record, "id"),
			LayoutID: layoutIDField(record),
		})
	}
	return entries, nil
}

// SearchByAddress looks up a record by exact Address match. The bool result
// reports whether a record was found.
func (c *Client) SearchByAddress(ctx context.Context, module, address string) (string, bool, error) {
	res, err := c.do(ctx, requestSpec{
		method: http.MethodGet,
		path:   "/" + module + "/search",
		query:  map[string]string{"criteria": fmt.Sprintf("(Address:equals:%s)", address)},
	})
	if err != nil {
		return "", false, err
	}
	if res.StatusCode() == http.StatusNoContent || len(res.Body()) == 0 {
		return "", false, nil
	}

	env, err := decodeEnvelope(res.Body())
	if err != nil {
		return "", false, err
	}
	if len(env.Data) == 0 {
		return "", false, nil
	}
	return stringField(env.Data[0], "id"), true, nil
}

// CreateRecord inserts one record and returns its ID.
func (c *Client) CreateRecord(ctx context.Context, module string, fields map[string]any) (string, error) {
	body, err := c.Create(ctx, "/"+module, map[string]any{"data": []map[string]any{fields}})
	if err != nil {
		return "", err
	}

	env, err := decodeEnvelope(body)
	if err != nil {
		return "", err
	}
	if len(env.Data) == 0 {
		return "", eris.Errorf("crm: create %s returned no data", module)
	}
	details, ok := env.Data[0]["details"].(map[string]any)
	if !ok {
		return "", eris.Errorf("crm: create %s returned no record details", module)
	}
	id := stringField(details, "id")
	if id == "" {
		return "", eris.Errorf("crm: create %s returned empty record id", module)
	}
	return id, nil
}

// UpdateRecord sets fields on an existing record.
func (c *Client) UpdateRecord(ctx context.Context, module, id string, fields map[string]any) error {
	_, err := c.Update(ctx, "/"+module+"/"+id, map[string]any{"data": []map[string]any{fields}})
	return err
}

// GetLayoutID fetches a record and returns its $layout_id, which the
// interactive uploader needs to build the edit-view URL.
func (c *Client) GetLayoutID(ctx context.Context, module, id string) (string, error) {
	body, err := c.Get(ctx, "/"+module+"/"+id)
	if err != nil {
		return "", err
	}

	env, err := decodeEnvelope(body)
	if err != nil {
		return "", err
	}
	if len(env.Data) == 0 {
		return "", eris.Errorf("crm: record %s/%s not found in response", module, id)
	}
	layoutID := layoutIDField(env.Data[0])
	if layoutID == "" {
		return "", eris.Errorf("crm: record %s/%s has no layout id", module, id)
	}
	return layoutID, nil
}

// UploadPhoto attaches the file as the record's photo.
func (c *Client) UploadPhoto(ctx context.Context, module, id, filePath string) error {
	return c.UploadBinary(ctx, "/"+module+"/"+id+"/photo", filePath)
}
