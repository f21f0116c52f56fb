// Package store persists reconciliation attempt history for observability.
// It is not a correctness dependency: the ledger alone decides what gets
// reprocessed.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/accountsync-cli/internal/model"
)

// AttemptFilter specifies criteria for listing attempts.
type AttemptFilter struct {
	Address string        `json:"address,omitempty"`
	Outcome model.Outcome `json:"outcome,omitempty"`
	Limit   int           `json:"limit,omitempty"`
}

// Counters summarizes attempt outcomes for status reporting.
type Counters struct {
	Committed int `json:"committed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Store defines the attempt-history persistence interface.
type Store interface {
	RecordAttempt(ctx context.Context, attempt model.Attempt) error
	ListAttempts(ctx context.Context, filter AttemptFilter) ([]model.Attempt, error)
	Counts(ctx context.Context) (Counters, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
