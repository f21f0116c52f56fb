package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/accountsync-cli/internal/automation"
	"github.com/sells-group/accountsync-cli/internal/crm"
	"github.com/sells-group/accountsync-cli/internal/extract"
	"github.com/sells-group/accountsync-cli/internal/images"
	"github.com/sells-group/accountsync-cli/internal/ledger"
	"github.com/sells-group/accountsync-cli/internal/source"
	"github.com/sells-group/accountsync-cli/internal/store"
	syncer "github.com/sells-group/accountsync-cli/internal/sync"
)

// env holds the wired collaborators shared by the sync, status, and serve
// commands.
type env struct {
	Ledger  *ledger.Ledger
	CRM     *crm.Client
	Store   store.Store
	Orch    *syncer.Orchestrator
	Sources map[string]source.Source
}

// initEnv wires the full reconciliation pipeline from config.
func initEnv(ctx context.Context) (*env, error) {
	led, err := ledger.Open(cfg.Sync.LedgerPath)
	if err != nil {
		return nil, err
	}

	client, err := crm.New(crm.NewFileSessionStore(cfg.CRM.SessionPath), crm.Options{
		Timeout:      time.Duration(cfg.CRM.TimeoutSecs) * time.Second,
		RateLimitRPS: cfg.CRM.RateLimitRPS,
	})
	if err != nil {
		led.Close()
		return nil, err
	}

	hist, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		led.Close()
		return nil, err
	}
	if err := hist.Migrate(ctx); err != nil {
		led.Close()
		hist.Close()
		return nil, eris.Wrap(err, "migrate history store")
	}

	selectors, err := automation.LoadSelectors(cfg.Automation.SelectorProfile)
	if err != nil {
		led.Close()
		hist.Close()
		return nil, err
	}

	automator := automation.NewRemoteAutomator(cfg.Automation.AgentURL, 60*time.Second)
	uploader := automation.NewUploader(automator, selectors, cfg.CRM.EditorBaseURL, automation.UploaderOptions{
		Settle:     time.Duration(cfg.Automation.SettleSecs) * time.Second,
		UploadWait: time.Duration(cfg.Automation.UploadWaitSecs) * time.Second,
	})
	extractor := extract.NewGoogleExtractor(automator, extract.GoogleOptions{
		SearchURL:  cfg.Extract.SearchURL,
		PageSettle: time.Duration(cfg.Extract.PageSettleSecs) * time.Second,
	})

	orch := syncer.NewOrchestrator(
		led, client, extractor,
		images.NewPipeline(cfg.Sync.ImagesDir),
		uploader, hist, images.EncodeInline,
		syncer.Options{
			Module:        cfg.CRM.AccountsModule,
			RequireImages: cfg.Sync.RequireImages,
			InlineImages:  cfg.Sync.InlineImages,
			InlineField:   cfg.Sync.InlineField,
		},
	)

	return &env{
		Ledger: led,
		CRM:    client,
		Store:  hist,
		Orch:   orch,
		Sources: map[string]source.Source{
			"file": &source.FileSource{Path: cfg.Sync.QueuePath},
			"crm":  &source.CRMSource{API: client, Module: cfg.CRM.AccountsModule},
		},
	}, nil
}

// Close releases the environment's file and database handles.
func (e *env) Close() {
	e.Ledger.Close()
	e.Store.Close()
}

func (e *env) sourceFor(name string) (source.Source, error) {
	src, ok := e.Sources[name]
	if !ok {
		return nil, eris.Errorf("unknown address source %q (want file or crm)", name)
	}
	return src, nil
}
