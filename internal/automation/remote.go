package automation

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
)

// RemoteAutomator drives a browser through a driver agent's HTTP bridge.
// The agent owns the actual browser session; this client only relays
// commands, so a crashed agent surfaces as transport errors here.
type RemoteAutomator struct {
	http *resty.Client
}

// NewRemoteAutomator creates a client for the agent at baseURL,
// e.g. http://localhost:4444.
func NewRemoteAutomator(baseURL string, timeout time.Duration) *RemoteAutomator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RemoteAutomator{
		http: resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
	}
}

type commandRequest struct {
	URL       string `json:"url,omitempty"`
	Selector  string `json:"selector,omitempty"`
	Text      string `json:"text,omitempty"`
	Attribute string `json:"attribute,omitempty"`
	TimeoutMS int64  `json:"timeout_ms,omitempty"`
}

type commandResponse struct {
	OK    bool   `json:"ok"`
	Value string `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

func (a *RemoteAutomator) command(ctx context.Context, path string, req commandRequest) (commandResponse, error) {
	var out commandResponse
	res, err := a.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post(path)
	if err != nil {
		return out, eris.Wrapf(err, "automation: agent %s", path)
	}
	if res.StatusCode() != http.StatusOK {
		return out, eris.Errorf("automation: agent %s returned status %d", path, res.StatusCode())
	}
	return out, nil
}

func (a *RemoteAutomator) Navigate(ctx context.Context, url string) error {
	out, err := a.command(ctx, "/session/navigate", commandRequest{URL: url})
	if err != nil {
		return err
	}
	if !out.OK {
		return eris.Errorf("automation: navigate %s: %s", url, out.Error)
	}
	return nil
}

func (a *RemoteAutomator) Click(ctx context.Context, selector string) bool {
	out, err := a.command(ctx, "/session/click", commandRequest{Selector: selector})
	return err == nil && out.OK
}

func (a *RemoteAutomator) WaitFor(ctx context.Context, selector string, timeout time.Duration) bool {
	out, err := a.command(ctx, "/session/wait", commandRequest{
		Selector:  selector,
		TimeoutMS: timeout.Milliseconds(),
	})
	return err == nil && out.OK
}

func (a *RemoteAutomator) SendKeys(ctx context.Context, selector, text string) error {
	out, err := a.command(ctx, "/session/keys", commandRequest{Selector: selector, Text: text})
	if err != nil {
		return err
	}
	if !out.OK {
		return eris.Errorf("automation: send keys to %s: %s", selector, out.Error)
	}
	return nil
}

func (a *RemoteAutomator) GetText(ctx context.Context, selector string) (string, error) {
	out, err := a.command(ctx, "/session/text", commandRequest{Selector: selector})
	if err != nil {
		return "", err
	}
	if !out.OK {
		return "", eris.Errorf("automation: get text of %s: %s", selector, out.Error)
	}
	return out.Value, nil
}

func (a *RemoteAutomator) GetAttribute(ctx context.Context, selector, name string) (string, error) {
	out, err := a.command(ctx, "/session/attribute", commandRequest{Selector: selector, Attribute: name})
	if err != nil {
		return "", err
	}
	if !out.OK {
		return "", eris.Errorf("automation: get attribute %s of %s: %s", name, selector, out.Error)
	}
	return out.Value, nil
}
