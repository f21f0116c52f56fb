// Package sync drives the per-address reconciliation pass: ledger check,
// extraction, record upsert, image delivery, and finally the ledger commit
// that makes the address permanent.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/accountsync-cli/internal/crm"
	"github.com/sells-group/accountsync-cli/internal/extract"
	"github.com/sells-group/accountsync-cli/internal/ledger"
	"github.com/sells-group/accountsync-cli/internal/model"
	"github.com/sells-group/accountsync-cli/internal/source"
	"github.com/sells-group/accountsync-cli/internal/store"
)

// Materializer turns a record's image locators into local files.
type Materializer interface {
	MaterializeAll(ctx context.Context, rec *model.BusinessRecord) []model.ImageAsset
}

// Attacher delivers local assets into a record's image slots.
type Attacher interface {
	AttachImages(ctx context.Context, ref model.RecordRef, assets []model.ImageAsset) error
}

// InlineEncoder encodes a local asset for an inline CRM field.
type InlineEncoder func(path string) (string, error)

// Options tunes orchestrator policy.
type Options struct {
	// Module is the CRM module reconciled records belong to.
	Module string
	// RequireImages makes image delivery failures block the ledger commit,
	// so the next pass retries the whole address.
	RequireImages bool
	// InlineImages delivers assets as data URIs on record fields instead of
	// driving the interactive slot uploader.
	InlineImages bool
	// InlineField is the base field name for inline delivery; slots append
	// their 1-based number.
	InlineField string
}

// Orchestrator reconciles one address at a time against the CRM.
type Orchestrator struct {
	ledger    *ledger.Ledger
	api       crm.API
	extractor extract.Extractor
	images    Materializer
	attacher  Attacher
	history   store.Store
	opts      Options

	// encodeInline is injectable for tests.
	encodeInline InlineEncoder

	now func() time.Time
}

// NewOrchestrator wires the reconciliation collaborators together.
func NewOrchestrator(led *ledger.Ledger, api crm.API, ex extract.Extractor, mat Materializer, att Attacher, hist store.Store, enc InlineEncoder, opts Options) *Orchestrator {
	if opts.Module == "" {
		opts.Module = "Accounts"
	}
	if opts.InlineField == "" {
		opts.InlineField = "Images"
	}
	return &Orchestrator{
		ledger:       led,
		api:          api,
		extractor:    ex,
		images:       mat,
		attacher:     att,
		history:      hist,
		opts:         opts,
		encodeInline: enc,
		now:          time.Now,
	}
}

// RunPass processes every address the source yields and returns the pass
// totals. Per-address failures are absorbed; only context cancellation and
// authentication failure abort the pass, because every remaining address
// would fail the same way.
func (o *Orchestrator) RunPass(ctx context.Context, src source.Source) (model.PassReport, error) {
	addresses, err := src.Addresses(ctx)
	if err != nil {
		return model.PassReport{}, eris.Wrap(err, "sync: list addresses")
	}

	var report model.PassReport
	for _, address := range addresses {
		if err := ctx.Err(); err != nil {
			return report, eris.Wrap(err, "sync: pass interrupted")
		}

		attempt, fatal := o.ProcessAddress(ctx, address)
		o.record(ctx, attempt)

		report.Total++
		switch attempt.Outcome {
		case model.OutcomeSkipped:
			report.Skipped++
		case model.OutcomeCommitted:
			report.Committed++
		case model.OutcomeFailed:
			report.Failed++
		}

		if fatal != nil {
			return report, eris.Wrapf(fatal, "sync: aborting pass at %q", address)
		}
	}
	return report, nil
}

// ProcessAddress runs the full reconciliation state machine for one address.
// The ledger commit is last: any earlier exit leaves the address eligible for
// the next pass. The returned error is nil unless the failure dooms the rest
// of the pass (authentication is gone for good).
func (o *Orchestrator) ProcessAddress(ctx context.Context, address string) (model.Attempt, error) {
	started := o.now()
	log := zap.L().With(zap.String("address", address))

	finish := func(outcome model.Outcome, recordID, detail string) model.Attempt {
		return model.Attempt{
			Address:    address,
			Outcome:    outcome,
			Detail:     detail,
			RecordID:   recordID,
			StartedAt:  started,
			FinishedAt: o.now(),
		}
	}

	if o.ledger.Contains(address) {
		log.Debug("sync: already reconciled")
		return finish(model.OutcomeSkipped, "", "already reconciled"), nil
	}

	rec, err := o.extractor.Extract(ctx, address)
	if err != nil {
		log.Warn("sync: extraction failed", zap.Error(err))
		return finish(model.OutcomeFailed, "", eris.ToString(err, false)), nil
	}

	ref, err := o.upsert(ctx, rec)
	if err != nil {
		log.Error("sync: upsert failed", zap.Error(err))
		return finish(model.OutcomeFailed, "", eris.ToString(err, false)), fatalIfAuth(err)
	}
	log = log.With(zap.String("record", ref.RecordID))

	assets := o.images.MaterializeAll(ctx, rec)
	if err := o.deliver(ctx, ref, assets); err != nil {
		if o.opts.RequireImages {
			log.Error("sync: image delivery failed", zap.Error(err))
			return finish(model.OutcomeFailed, ref.RecordID, eris.ToString(err, false)), fatalIfAuth(err)
		}
		log.Warn("sync: image delivery incomplete, committing anyway", zap.Error(err))
	}

	if err := o.ledger.Commit(address); err != nil {
		log.Error("sync: ledger commit failed", zap.Error(err))
		return finish(model.OutcomeFailed, ref.RecordID, eris.ToString(err, false)), nil
	}

	log.Info("sync: address reconciled", zap.Int("images", len(assets)))
	return finish(model.OutcomeCommitted, ref.RecordID, fmt.Sprintf("%d images delivered", len(assets))), nil
}

func fatalIfAuth(err error) error {
	if crm.IsAuthError(err) {
		return err
	}
	return nil
}

// upsert finds or creates the CRM record for the extracted business and
// resolves the layout needed for the edit view. Matching is by exact address,
// so reprocessing an address never creates a duplicate record.
func (o *Orchestrator) upsert(ctx context.Context, rec *model.BusinessRecord) (model.RecordRef, error) {
	fields := recordFields(rec)

	id, found, err := o.api.SearchByAddress(ctx, o.opts.Module, rec.Address)
	if err != nil {
		return model.RecordRef{}, eris.Wrapf(err, "sync: search %q", rec.Address)
	}

	if found {
		if err := o.api.UpdateRecord(ctx, o.opts.Module, id, fields); err != nil {
			return model.RecordRef{}, eris.Wrapf(err, "sync: update record %s", id)
		}
	} else {
		id, err = o.api.CreateRecord(ctx, o.opts.Module, fields)
		if err != nil {
			return model.RecordRef{}, eris.Wrapf(err, "sync: create record for %q", rec.Address)
		}
	}

	layoutID, err := o.api.GetLayoutID(ctx, o.opts.Module, id)
	if err != nil {
		return model.RecordRef{}, eris.Wrapf(err, "sync: resolve layout for %s", id)
	}

	return model.RecordRef{RecordID: id, LayoutID: layoutID}, nil
}

// deliver pushes materialized assets into the record, either as inline field
// data or through the interactive slot uploader. The first asset also becomes
// the record photo, best-effort.
func (o *Orchestrator) deliver(ctx context.Context, ref model.RecordRef, assets []model.ImageAsset) error {
	if len(assets) == 0 {
		return nil
	}

	if err := o.api.UploadPhoto(ctx, o.opts.Module, ref.RecordID, assets[0].Path); err != nil {
		zap.L().Warn("sync: record photo upload failed",
			zap.String("record", ref.RecordID), zap.Error(err))
	}

	if o.opts.InlineImages {
		return o.deliverInline(ctx, ref, assets)
	}
	return o.attacher.AttachImages(ctx, ref, assets)
}

func (o *Orchestrator) deliverInline(ctx context.Context, ref model.RecordRef, assets []model.ImageAsset) error {
	fields := make(map[string]any, len(assets))
	for _, asset := range assets {
		encoded, err := o.encodeInline(asset.Path)
		if err != nil {
			return eris.Wrapf(err, "sync: encode slot %d", asset.Slot)
		}
		fields[fmt.Sprintf("%s_%d", o.opts.InlineField, asset.Slot+1)] = encoded
	}
	return eris.Wrapf(o.api.UpdateRecord(ctx, o.opts.Module, ref.RecordID, fields),
		"sync: write inline images to %s", ref.RecordID)
}

// recordFields maps the extracted business onto CRM field names.
func recordFields(rec *model.BusinessRecord) map[string]any {
	fields := map[string]any{
		"Address": rec.Address,
	}
	if rec.Name != "" {
		fields["Account_Name"] = rec.Name
	}
	if rec.Website != "" {
		fields["Website"] = rec.Website
	}
	if rec.Phone != "" {
		fields["Phone"] = rec.Phone
	}
	return fields
}

// record persists the attempt for status reporting. History is advisory, so
// a write failure only logs.
func (o *Orchestrator) record(ctx context.Context, attempt model.Attempt) {
	if o.history == nil {
		return
	}
	if err := o.history.RecordAttempt(ctx, attempt); err != nil {
		zap.L().Warn("sync: history write failed",
			zap.String("address", attempt.Address), zap.Error(err))
	}
}
