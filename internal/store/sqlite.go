package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/accountsync-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS attempts (
	id          TEXT PRIMARY KEY,
	address     TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	detail      TEXT,
	record_id   TEXT,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attempts_address ON attempts(address);
CREATE INDEX IF NOT EXISTS idx_attempts_outcome ON attempts(outcome);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordAttempt(ctx context.Context, attempt model.Attempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (id, address, outcome, detail, record_id, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		attempt.ID, attempt.Address, string(attempt.Outcome), attempt.Detail,
		attempt.RecordID, attempt.StartedAt.UTC(), attempt.FinishedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert attempt for %s", attempt.Address)
}

func (s *SQLiteStore) ListAttempts(ctx context.Context, filter AttemptFilter) ([]model.Attempt, error) {
	query := `SELECT id, address, outcome, detail, record_id, started_at, finished_at FROM attempts WHERE 1=1`
	var args []any

	if filter.Address != "" {
		query += ` AND address = ?`
		args = append(args, filter.Address)
	}
	if filter.Outcome != "" {
		query += ` AND outcome = ?`
		args = append(args, string(filter.Outcome))
	}
	query += ` ORDER BY started_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list attempts")
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		var outcome string
		var detail, recordID sql.NullString
		var started, finished time.Time
		if err := rows.Scan(&a.ID, &a.Address, &outcome, &detail, &recordID, &started, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan attempt")
		}
		a.Outcome = model.Outcome(outcome)
		a.Detail = detail.String
		a.RecordID = recordID.String
		a.StartedAt = started
		a.FinishedAt = finished
		attempts = append(attempts, a)
	}
	return attempts, eris.Wrap(rows.Err(), "sqlite: iterate attempts")
}

func (s *SQLiteStore) Counts(ctx context.Context) (Counters, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*) FROM attempts GROUP BY outcome`)
	if err != nil {
		return Counters{}, eris.Wrap(err, "sqlite: count attempts")
	}
	defer rows.Close()

	var c Counters
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return Counters{}, eris.Wrap(err, "sqlite: scan count")
		}
		switch model.Outcome(outcome) {
		case model.OutcomeCommitted:
			c.Committed = n
		case model.OutcomeSkipped:
			c.Skipped = n
		case model.OutcomeFailed:
			c.Failed = n
		}
	}
	return c, eris.Wrap(rows.Err(), "sqlite: iterate counts")
}
