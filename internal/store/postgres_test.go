package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/accountsync-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func strPtr(s string) *string { return &s }

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS attempts`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordAttempt(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO attempts`).
		WithArgs(pgxmock.AnyArg(), "1 Main St", "committed", "", "rec-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordAttempt(context.Background(), model.Attempt{
		Address:    "1 Main St",
		Outcome:    model.OutcomeCommitted,
		RecordID:   "rec-1",
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordAttempt_AssignsID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO attempts`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordAttempt(context.Background(), model.Attempt{
		Address: "5 Oak Ave",
		Outcome: model.OutcomeFailed,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAttempts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "address", "outcome", "detail", "record_id", "started_at", "finished_at"}).
		AddRow("a1", "1 Main St", "committed", strPtr("upserted"), strPtr("rec-1"), started, started.Add(time.Second))

	mock.ExpectQuery(`SELECT id, address, outcome, detail, record_id, started_at, finished_at FROM attempts WHERE 1=1 AND address = \$1 ORDER BY started_at DESC LIMIT \$2`).
		WithArgs("1 Main St", 5).
		WillReturnRows(rows)

	attempts, err := s.ListAttempts(context.Background(), AttemptFilter{Address: "1 Main St", Limit: 5})
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, "a1", attempts[0].ID)
	assert.Equal(t, model.OutcomeCommitted, attempts[0].Outcome)
	assert.Equal(t, "upserted", attempts[0].Detail)
	assert.Equal(t, "rec-1", attempts[0].RecordID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAttempts_NullFields(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	started := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "address", "outcome", "detail", "record_id", "started_at", "finished_at"}).
		AddRow("a2", "5 Oak Ave", "skipped", (*string)(nil), (*string)(nil), started, started)

	mock.ExpectQuery(`SELECT id, address, outcome, detail, record_id, started_at, finished_at FROM attempts WHERE 1=1 ORDER BY started_at DESC`).
		WillReturnRows(rows)

	attempts, err := s.ListAttempts(context.Background(), AttemptFilter{})
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Empty(t, attempts[0].Detail)
	assert.Empty(t, attempts[0].RecordID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Counts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"outcome", "count"}).
		AddRow("committed", int64(3)).
		AddRow("skipped", int64(2)).
		AddRow("failed", int64(1))

	mock.ExpectQuery(`SELECT outcome, COUNT\(\*\) FROM attempts GROUP BY outcome`).
		WillReturnRows(rows)

	counts, err := s.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Counters{Committed: 3, Skipped: 2, Failed: 1}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
