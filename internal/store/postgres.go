package store

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/accountsync-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS attempts (
	id          TEXT PRIMARY KEY,
	address     TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	detail      TEXT,
	record_id   TEXT,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attempts_address ON attempts(address);
CREATE INDEX IF NOT EXISTS idx_attempts_outcome ON attempts(outcome);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) RecordAttempt(ctx context.Context, attempt model.Attempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO attempts (id, address, outcome, detail, record_id, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		attempt.ID, attempt.Address, string(attempt.Outcome), attempt.Detail,
		attempt.RecordID, attempt.StartedAt.UTC(), attempt.FinishedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert attempt for %s", attempt.Address)
}

func (s *PostgresStore) ListAttempts(ctx context.Context, filter AttemptFilter) ([]model.Attempt, error) {
	query := `SELECT id, address, outcome, detail, record_id, started_at, finished_at FROM attempts WHERE 1=1`
	var args []any

	if filter.Address != "" {
		args = append(args, filter.Address)
		query += ` AND address = $` + strconv.Itoa(len(args))
	}
	if filter.Outcome != "" {
		args = append(args, string(filter.Outcome))
		query += ` AND outcome = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY started_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list attempts")
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		var outcome string
		var detail, recordID *string
		var started, finished time.Time
		if err := rows.Scan(&a.ID, &a.Address, &outcome, &detail, &recordID, &started, &finished); err != nil {
			return nil, eris.Wrap(err, "postgres: scan attempt")
		}
		a.Outcome = model.Outcome(outcome)
		if detail != nil {
			a.Detail = *detail
		}
		if recordID != nil {
			a.RecordID = *recordID
		}
		a.StartedAt = started
		a.FinishedAt = finished
		attempts = append(attempts, a)
	}
	return attempts, eris.Wrap(rows.Err(), "postgres: iterate attempts")
}

func (s *PostgresStore) Counts(ctx context.Context) (Counters, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT outcome, COUNT(*) FROM attempts GROUP BY outcome`)
	if err != nil {
		return Counters{}, eris.Wrap(err, "postgres: count attempts")
	}
	defer rows.Close()

	var c Counters
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return Counters{}, eris.Wrap(err, "postgres: scan count")
		}
		switch model.Outcome(outcome) {
		case model.OutcomeCommitted:
			c.Committed = int(n)
		case model.OutcomeSkipped:
			c.Skipped = int(n)
		case model.OutcomeFailed:
			c.Failed = int(n)
		}
	}
	return c, eris.Wrap(rows.Err(), "postgres: iterate counts")
}
