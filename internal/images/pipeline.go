// Package images materializes image locators into local files and encodes
// local files for inline CRM fields.
//
// The on-disk layout is a contract shared with the interactive uploader:
// <base>/<business name, whitespace → underscores>/image_<slot>.jpg. Because
// the path is deterministic, a re-run can deliver images without refetching.
package images

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/accountsync-cli/internal/model"
	"github.com/sells-group/accountsync-cli/internal/resilience"
)

// AssetPath returns the deterministic local path for a business's slot image.
func AssetPath(baseDir, businessName string, slot int) string {
	folder := strings.Join(strings.Fields(businessName), "_")
	return filepath.Join(baseDir, folder, fmt.Sprintf("image_%d.jpg", slot))
}

// Pipeline fetches and decodes image locators into local assets.
type Pipeline struct {
	http    *resty.Client
	baseDir string
	retry   resilience.RetryConfig
}

// NewPipeline creates a pipeline writing under baseDir.
func NewPipeline(baseDir string) *Pipeline {
	return &Pipeline{
		http:    resty.New().SetTimeout(30 * time.Second),
		baseDir: baseDir,
		retry:   resilience.DefaultRetryConfig(),
	}
}

// Materialize turns one locator into a local file. The bool result reports
// whether an asset exists; a missing or unfetchable image is not an error,
// because an absent image never blocks record creation.
func (p *Pipeline) Materialize(ctx context.Context, loc model.ImageLocator, slot int, businessName string) (model.ImageAsset, bool, error) {
	if loc.IsAbsent() {
		return model.ImageAsset{}, false, nil
	}

	path := AssetPath(p.baseDir, businessName, slot)

	// Resume without refetching.
	if _, err := os.Stat(path); err == nil {
		return model.ImageAsset{Slot: slot, Path: path, MIME: "image/jpeg"}, true, nil
	}

	var data []byte
	switch loc.Kind {
	case model.LocatorInline:
		data = loc.Data
	case model.LocatorRemote:
		fetched, ok := p.fetch(ctx, loc.URL)
		if !ok {
			return model.ImageAsset{}, false, nil
		}
		data = fetched
	default:
		return model.ImageAsset{}, false, eris.Errorf("images: unknown locator kind %q", loc.Kind)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return model.ImageAsset{}, false, eris.Wrapf(err, "images: mkdir for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return model.ImageAsset{}, false, eris.Wrapf(err, "images: write %s", path)
	}

	return model.ImageAsset{Slot: slot, Path: path, MIME: "image/jpeg"}, true, nil
}

// MaterializeAll materializes every available locator on the record,
// best-effort. Failed slots are logged and skipped.
func (p *Pipeline) MaterializeAll(ctx context.Context, rec *model.BusinessRecord) []model.ImageAsset {
	var assets []model.ImageAsset
	for slot, loc := range rec.Images {
		asset, ok, err := p.Materialize(ctx, loc, slot, rec.Name)
		if err != nil {
			zap.L().Warn("images: slot failed to materialize",
				zap.String("business", rec.Name),
				zap.Int("slot", slot),
				zap.Error(err),
			)
			continue
		}
		if ok {
			assets = append(assets, asset)
		}
	}
	return assets
}

// fetch downloads url, retrying transient failures. A definitive non-2xx
// answer means the slot has no image.
func (p *Pipeline) fetch(ctx context.Context, url string) ([]byte, bool) {
	data, err := resilience.DoVal(ctx, p.retry, func(ctx context.Context) ([]byte, error) {
		res, err := p.http.R().SetContext(ctx).Get(url)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrapf(err, "images: get %s", url), 0)
		}
		if res.StatusCode() != http.StatusOK {
			err := eris.Errorf("images: get %s returned status %d", url, res.StatusCode())
			if resilience.IsTransientHTTPStatus(res.StatusCode()) {
				return nil, resilience.NewTransientError(err, res.StatusCode())
			}
			return nil, err
		}
		return res.Body(), nil
	})
	if err != nil {
		zap.L().Warn("images: fetch failed", zap.String("url", url), zap.Error(err))
		return nil, false
	}
	return data, true
}

// mimeByExtension maps file extensions to MIME types for inline encoding.
var mimeByExtension = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
}

// EncodeInline reads a local file and returns a data-URI string suitable for
// CRM fields that accept inline image data.
func EncodeInline(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "images: read %s", path)
	}

	mime, ok := mimeByExtension[strings.ToLower(filepath.Ext(path))]
	if !ok {
		mime = "application/octet-stream"
	}

	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)), nil
}
