package extract

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/accountsync-cli/internal/automation"
	"github.com/sells-group/accountsync-cli/internal/model"
)

// Search-result selectors for the business knowledge panel.
const (
	selSearchBox = "//*[@name='q']"
	selTitle     = "//div[@data-attrid='title']"
	selWebsite   = "//a[.//span[text()='Website']]"
	selPhone     = "//a[@data-phone-number]"
)

// One selector per image slot: storefront photo, map, street view.
var slotImageSelectors = [model.MaxImageSlots]string{
	"//div[@id='media_result_group']//span[text()='See photos']/preceding-sibling::g-img//img",
	"//div[@id='media_result_group']//img[contains(@alt, 'Map of')]",
	"//div[@id='media_result_group']//span[text()='See outside']/preceding-sibling::g-img//img",
}

// GoogleOptions tunes the extractor.
type GoogleOptions struct {
	SearchURL  string
	PageSettle time.Duration
}

// GoogleExtractor extracts business attributes from a search result page.
type GoogleExtractor struct {
	automator automation.PageAutomator
	searchURL string
	settle    time.Duration

	sleep func(ctx context.Context, d time.Duration)
}

// NewGoogleExtractor creates an extractor over the given automator.
func NewGoogleExtractor(automator automation.PageAutomator, opts GoogleOptions) *GoogleExtractor {
	if opts.SearchURL == "" {
		opts.SearchURL = "https://www.google.com"
	}
	if opts.PageSettle <= 0 {
		opts.PageSettle = 3 * time.Second
	}
	return &GoogleExtractor{
		automator: automator,
		searchURL: opts.SearchURL,
		settle:    opts.PageSettle,
		sleep: func(ctx context.Context, d time.Duration) {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
		},
	}
}

// Extract searches for the address and reads the knowledge panel. A result
// without a business name is an ExtractionError.
func (g *GoogleExtractor) Extract(ctx context.Context, address string) (*model.BusinessRecord, error) {
	if err := g.automator.Navigate(ctx, g.searchURL); err != nil {
		return nil, &ExtractionError{Address: address, Reason: "search page unavailable: " + err.Error()}
	}
	if !g.automator.WaitFor(ctx, selSearchBox, g.settle) {
		return nil, &ExtractionError{Address: address, Reason: "search box never appeared"}
	}
	if err := g.automator.SendKeys(ctx, selSearchBox, address+"\n"); err != nil {
		return nil, &ExtractionError{Address: address, Reason: "typing search query failed: " + err.Error()}
	}
	g.sleep(ctx, g.settle)

	name, err := g.automator.GetText(ctx, selTitle)
	if err != nil || strings.TrimSpace(name) == "" {
		return nil, &ExtractionError{Address: address, Reason: "no business title in result"}
	}

	rec := &model.BusinessRecord{
		Address: address,
		Name:    strings.TrimSpace(name),
	}

	// Website and phone are optional; a panel without them is still a record.
	if website, err := g.automator.GetAttribute(ctx, selWebsite, "href"); err == nil {
		rec.Website = website
	}
	if phone, err := g.automator.GetAttribute(ctx, selPhone, "data-phone-number"); err == nil {
		rec.Phone = phone
	}

	for slot, sel := range slotImageSelectors {
		src, err := g.automator.GetAttribute(ctx, sel, "src")
		if err != nil || src == "" {
			rec.Images[slot] = model.AbsentLocator()
			continue
		}
		rec.Images[slot] = locatorFromSrc(src)
	}

	zap.L().Debug("extract: record built",
		zap.String("address", address),
		zap.String("name", rec.Name),
	)
	return rec, nil
}

// locatorFromSrc classifies an img src: data: URIs carry their bytes inline,
// anything else is fetched later by the image pipeline.
func locatorFromSrc(src string) model.ImageLocator {
	if !strings.HasPrefix(src, "data:image") {
		return model.RemoteLocator(src)
	}

	header, encoded, ok := strings.Cut(src, ",")
	if !ok {
		return model.AbsentLocator()
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return model.AbsentLocator()
	}

	mime := strings.TrimPrefix(header, "data:")
	mime = strings.TrimSuffix(mime, ";base64")
	return model.InlineLocator(mime, data)
}
