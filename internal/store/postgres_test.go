package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/project-registry/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return newPostgresWithPool(mock), mock
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgresStore_GetProject_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM projects WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetProject(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindCandidates(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	announced := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	cols := append(append([]string{}, projectColumns...), "source_count")
	rows := pgxmock.NewRows(cols).AddRow(
		"p1", "King Salman Park Phase 1", "", "Under Construction", "King Salman Park Foundation",
		"", "", "Riyadh", "Riyadh", "Mega Project",
		"", "", "", &start,
		&announced, 0.78, true,
		0.6, now, now, 2, 2,
	)
	mock.ExpectQuery(`strpos\(name_lower, \$1\) > 0 OR strpos\(name_key, \$2\) > 0`).
		WithArgs("king salman park pro", "king salman park pha").
		WillReturnRows(rows)

	got, err := s.FindCandidates(context.Background(), "king salman park pro", "king salman park pha")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, model.StatusUnderConstruction, got[0].Status)
	assert.Equal(t, 2, got[0].SourceCount)
	assert.True(t, got[0].IsVerified)
	require.NotNil(t, got[0].StartDate)
	assert.True(t, got[0].StartDate.Equal(start))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProject_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE projects SET`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	p := newProject("Ghost Tower", "Riyadh")
	p.ID = "missing"
	err := s.UpdateProject(context.Background(), p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddSource_Duplicate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(project_id, url\) DO NOTHING`).
		WithArgs(anyArgs(8)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := s.AddSource(context.Background(), &model.SourceRecord{ProjectID: "p1", URL: "https://a.example/1"})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InTx_Commit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO projects`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO sources`).WithArgs(anyArgs(8)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.InTx(context.Background(), func(tx Tx) error {
		p := newProject("Jeddah Tower", "Makkah")
		if err := tx.CreateProject(context.Background(), p); err != nil {
			return err
		}
		_, err := tx.AddSource(context.Background(), &model.SourceRecord{ProjectID: p.ID, URL: "https://a.example/1"})
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InTx_RollbackOnPersistenceError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO projects`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := s.InTx(context.Background(), func(tx Tx) error {
		return tx.CreateProject(context.Background(), newProject("Jeddah Tower", "Makkah"))
	})
	require.Error(t, err)
	assert.True(t, IsPersistence(err))
	assert.Contains(t, err.Error(), "insert project")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	started := time.Now().UTC()
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "batch", 4, 4, 1, 1, 1, 1, 0.5, started, started).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run := &model.RunLog{
		Mode:       model.RunModeBatch,
		Summary:    model.Summary{Scraped: 4, Processed: 4, Added: 1, Updated: 1, Rejected: 1, Errors: 1, DurationSeconds: 0.5},
		StartedAt:  started,
		FinishedAt: started,
	}
	require.NoError(t, s.RecordRun(context.Background(), run))
	assert.NotEmpty(t, run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountDLQ(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM dead_letter_queue`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	count, err := s.CountDLQ(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_IncrementDLQRetry_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE dead_letter_queue`).
		WithArgs(pgxmock.AnyArg(), "boom", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.IncrementDLQRetry(context.Background(), "missing", time.Now(), "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS projects`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
