package automation

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/accountsync-cli/internal/model"
)

// UploaderOptions tunes the edit-session timing.
type UploaderOptions struct {
	// Settle is the pause after UI actions that re-render the page.
	Settle time.Duration
	// UploadWait bounds both the wait for the file input to appear and the
	// wait for upload processing before Attach.
	UploadWait time.Duration
}

// Uploader walks the CRM's slot-based image upload flow for one record.
// Slots are strictly sequential: each depends on the edit-session UI state
// left by the previous one.
type Uploader struct {
	automator     PageAutomator
	selectors     SelectorProfile
	editorBaseURL string
	settle        time.Duration
	uploadWait    time.Duration

	// sleep is injectable so tests don't wait out real settle intervals.
	sleep func(ctx context.Context, d time.Duration)
}

// NewUploader creates an Uploader. editorBaseURL is the module's edit-view
// prefix, e.g. https://crm.zoho.com/crm/org42/tab/Accounts.
func NewUploader(automator PageAutomator, selectors SelectorProfile, editorBaseURL string, opts UploaderOptions) *Uploader {
	if opts.Settle <= 0 {
		opts.Settle = 2 * time.Second
	}
	if opts.UploadWait <= 0 {
		opts.UploadWait = 10 * time.Second
	}
	return &Uploader{
		automator:     automator,
		selectors:     selectors,
		editorBaseURL: editorBaseURL,
		settle:        opts.Settle,
		uploadWait:    opts.UploadWait,
		sleep:         sleepCtx,
	}
}

// EditURL builds the deterministic edit-view URL for a record.
func (u *Uploader) EditURL(ref model.RecordRef) string {
	return fmt.Sprintf("%s/%s/edit?layoutId=%s", u.editorBaseURL, ref.RecordID, ref.LayoutID)
}

// AttachImages opens the record's edit session and attaches each asset to
// its slot. Individual slot failures are logged and skipped; a missing Save
// control fails the whole delivery. With zero assets the edit session is
// never opened.
func (u *Uploader) AttachImages(ctx context.Context, ref model.RecordRef, assets []model.ImageAsset) error {
	if len(assets) == 0 {
		return nil
	}
	if ref.LayoutID == "" {
		return eris.Errorf("automation: record %s has no layout id", ref.RecordID)
	}

	url := u.EditURL(ref)
	if err := u.automator.Navigate(ctx, url); err != nil {
		return eris.Wrapf(err, "automation: open edit session %s", url)
	}
	u.sleep(ctx, u.settle)

	for _, asset := range assets {
		if err := u.attachSlot(ctx, asset); err != nil {
			zap.L().Warn("automation: slot abandoned",
				zap.String("record", ref.RecordID),
				zap.Int("slot", asset.Slot),
				zap.Error(err),
			)
		}
	}

	if !u.automator.Click(ctx, u.selectors.SaveButton) {
		return eris.Errorf("automation: save control not found for record %s", ref.RecordID)
	}
	u.sleep(ctx, u.settle)
	return nil
}

// attachSlot runs the per-slot sequence: trigger, file input, path, attach.
func (u *Uploader) attachSlot(ctx context.Context, asset model.ImageAsset) error {
	// The UI numbers upload triggers from 1.
	trigger := u.selectors.SlotTrigger(asset.Slot + 1)

	if !u.automator.Click(ctx, trigger) {
		// Slot UI not yet expanded; open the image panel and retry once.
		u.automator.Click(ctx, u.selectors.PanelTrigger)
		u.sleep(ctx, u.settle)
		u.automator.Click(ctx, trigger)
	}
	u.sleep(ctx, u.settle)

	if !u.automator.WaitFor(ctx, u.selectors.FileInput, u.uploadWait) {
		return eris.Errorf("automation: file input never appeared for slot %d", asset.Slot)
	}

	absPath, err := filepath.Abs(asset.Path)
	if err != nil {
		return eris.Wrapf(err, "automation: resolve %s", asset.Path)
	}
	if err := u.automator.SendKeys(ctx, u.selectors.FileInput, absPath); err != nil {
		return eris.Wrapf(err, "automation: send path for slot %d", asset.Slot)
	}

	u.sleep(ctx, u.uploadWait)
	if !u.automator.Click(ctx, u.selectors.AttachButton) {
		return eris.Errorf("automation: attach control not found for slot %d", asset.Slot)
	}
	u.sleep(ctx, u.settle)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
