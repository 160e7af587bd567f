package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/project-registry/internal/model"
	"github.com/sells-group/project-registry/internal/resilience"
)

// sqliteTimeLayout is fixed-width so stored timestamps sort lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	sqliteQueries
	db *sql.DB
}

// sqlQueryer is satisfied by *sql.DB and *sql.Tx.
type sqlQueryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteQueries implements Tx over either the database or an open transaction.
type sqliteQueries struct {
	q sqlQueryer
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. A single connection serializes writers.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{sqliteQueries: sqliteQueries{q: db}, db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS projects (
	id                     TEXT PRIMARY KEY,
	project_name           TEXT NOT NULL,
	name_lower             TEXT NOT NULL,
	name_key               TEXT NOT NULL,
	project_name_localized TEXT NOT NULL DEFAULT '',
	status                 TEXT NOT NULL,
	owner                  TEXT NOT NULL DEFAULT '',
	main_contractor        TEXT NOT NULL DEFAULT '',
	consultant             TEXT NOT NULL DEFAULT '',
	region                 TEXT NOT NULL,
	city                   TEXT NOT NULL DEFAULT '',
	category               TEXT NOT NULL DEFAULT '',
	description            TEXT NOT NULL DEFAULT '',
	project_value          TEXT NOT NULL DEFAULT '',
	project_size           TEXT NOT NULL DEFAULT '',
	start_date             TEXT,
	announcement_date      TEXT,
	confidence_score       REAL NOT NULL DEFAULT 0,
	is_verified            INTEGER NOT NULL DEFAULT 0,
	data_completeness      REAL NOT NULL DEFAULT 0,
	first_discovered       TEXT NOT NULL,
	last_updated           TEXT NOT NULL,
	update_count           INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sources (
	id                TEXT PRIMARY KEY,
	project_id        TEXT NOT NULL REFERENCES projects(id),
	url               TEXT NOT NULL,
	source_type       TEXT NOT NULL,
	title             TEXT NOT NULL DEFAULT '',
	reliability_score REAL NOT NULL DEFAULT 0,
	official          INTEGER NOT NULL DEFAULT 0,
	discovered_at     TEXT NOT NULL,
	UNIQUE (project_id, url)
);

CREATE TABLE IF NOT EXISTS update_logs (
	id             TEXT PRIMARY KEY,
	project_id     TEXT NOT NULL REFERENCES projects(id),
	update_type    TEXT NOT NULL,
	fields_changed TEXT NOT NULL DEFAULT '[]',
	source_url     TEXT NOT NULL DEFAULT '',
	at             TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	mode             TEXT NOT NULL,
	scraped          INTEGER NOT NULL DEFAULT 0,
	processed        INTEGER NOT NULL DEFAULT 0,
	added            INTEGER NOT NULL DEFAULT 0,
	updated          INTEGER NOT NULL DEFAULT 0,
	rejected         INTEGER NOT NULL DEFAULT 0,
	errors           INTEGER NOT NULL DEFAULT 0,
	duration_seconds REAL NOT NULL DEFAULT 0,
	started_at       TEXT NOT NULL,
	finished_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY,
	item           TEXT NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	last_failed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_projects_name_lower ON projects(name_lower);
CREATE INDEX IF NOT EXISTS idx_projects_region ON projects(region);
CREATE INDEX IF NOT EXISTS idx_projects_last_updated ON projects(last_updated);
CREATE INDEX IF NOT EXISTS idx_sources_project_id ON sources(project_id);
CREATE INDEX IF NOT EXISTS idx_update_logs_project_id ON update_logs(project_id);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("begin", err)
	}
	if err := fn(sqliteQueries{q: tx}); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	return persistErr("commit", tx.Commit())
}

// Projects

func (q sqliteQueries) CreateProject(ctx context.Context, p *model.ProjectRecord) error {
	prepareProject(p, time.Now().UTC())
	query, args, err := insertProjectQuery(sq.Question, sqliteTime, p).ToSql()
	if err != nil {
		return eris.Wrap(err, "sqlite: build insert project")
	}
	_, err = q.q.ExecContext(ctx, query, args...)
	return persistErr("insert project", err)
}

func (q sqliteQueries) GetProject(ctx context.Context, id string) (*model.ProjectRecord, error) {
	query, args, err := selectProjects(sq.Question).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build get project")
	}
	p, err := scanSQLiteProject(q.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "project %s", id)
	}
	return p, eris.Wrapf(err, "sqlite: get project %s", id)
}

func (q sqliteQueries) FindCandidates(ctx context.Context, namePrefix, keyPrefix string) ([]model.ProjectRecord, error) {
	return q.queryProjects(ctx, candidatesQuery(sq.Question, "instr", namePrefix, keyPrefix), "find candidates")
}

func (q sqliteQueries) UpdateProject(ctx context.Context, p *model.ProjectRecord) error {
	query, args, err := updateProjectQuery(sq.Question, sqliteTime, p).ToSql()
	if err != nil {
		return eris.Wrap(err, "sqlite: build update project")
	}
	res, err := q.q.ExecContext(ctx, query, args...)
	if err != nil {
		return persistErr("update project", err)
	}
	return checkRowsAffected(res, p.ID)
}

func (q sqliteQueries) queryProjects(ctx context.Context, b sq.SelectBuilder, action string) ([]model.ProjectRecord, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: build %s", action)
	}
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", action)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ProjectRecord
	for rows.Next() {
		p, err := scanSQLiteProject(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: %s", action)
		}
		out = append(out, *p)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: %s iterate", action)
}

// Sources

func (q sqliteQueries) AddSource(ctx context.Context, src *model.SourceRecord) (bool, error) {
	if src.ID == "" {
		src.ID = uuid.New().String()
	}
	if src.DiscoveredAt.IsZero() {
		src.DiscoveredAt = time.Now().UTC()
	}
	res, err := q.q.ExecContext(ctx,
		`INSERT INTO sources (id, project_id, url, source_type, title, reliability_score, official, discovered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (project_id, url) DO NOTHING`,
		src.ID, src.ProjectID, src.URL, string(src.SourceType), src.Title,
		src.ReliabilityScore, src.Official, sqliteTime(src.DiscoveredAt),
	)
	if err != nil {
		return false, persistErr("insert source", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

func (q sqliteQueries) ListSources(ctx context.Context, projectID string) ([]model.SourceRecord, error) {
	query, args, err := sq.Select(sourceColumns...).
		From("sources").
		Where(sq.Eq{"project_id": projectID}).
		OrderBy("discovered_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build list sources")
	}
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sources")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.SourceRecord
	for rows.Next() {
		var src model.SourceRecord
		var discovered string
		if err := rows.Scan(&src.ID, &src.ProjectID, &src.URL, &src.SourceType, &src.Title,
			&src.ReliabilityScore, &src.Official, &discovered); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source")
		}
		if src.DiscoveredAt, err = parseSQLiteTime(discovered); err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list sources iterate")
}

// Update logs

func (q sqliteQueries) AddUpdateLog(ctx context.Context, entry *model.UpdateLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	fields, err := json.Marshal(nonNilStrings(entry.FieldsChanged))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal fields changed")
	}
	_, err = q.q.ExecContext(ctx,
		`INSERT INTO update_logs (id, project_id, update_type, fields_changed, source_url, at) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ProjectID, string(entry.UpdateType), string(fields), entry.SourceURL, sqliteTime(entry.At),
	)
	return persistErr("insert update log", err)
}

func (s *SQLiteStore) ListUpdateLogs(ctx context.Context, projectID string) ([]model.UpdateLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, update_type, fields_changed, source_url, at
		 FROM update_logs WHERE project_id = ? ORDER BY at ASC, id ASC`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list update logs")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.UpdateLog
	for rows.Next() {
		var l model.UpdateLog
		var fields, at string
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.UpdateType, &fields, &l.SourceURL, &at); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan update log")
		}
		if err := json.Unmarshal([]byte(fields), &l.FieldsChanged); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal fields changed")
		}
		if l.At, err = parseSQLiteTime(at); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list update logs iterate")
}

// Queries

func (s *SQLiteStore) ListProjects(ctx context.Context, filter ProjectFilter) ([]model.ProjectRecord, error) {
	return s.queryProjects(ctx, listProjectsQuery(sq.Question, filter), "list projects")
}

func (s *SQLiteStore) Stats(ctx context.Context, now time.Time) (*model.RegistryStats, error) {
	var st model.RegistryStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(confidence_score), 0) FROM projects`,
	).Scan(&st.TotalProjects, &st.AvgConfidence)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats totals")
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects WHERE first_discovered >= ?`,
		sqliteTime(monthStart(now)),
	).Scan(&st.NewThisMonth)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats new this month")
	}
	if st.ByRegion, err = s.countBy(ctx, "region", 0); err != nil {
		return nil, err
	}
	if st.ByCategory, err = s.countBy(ctx, "category", 0); err != nil {
		return nil, err
	}
	if st.TopContractors, err = s.countBy(ctx, "main_contractor", 10); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *SQLiteStore) countBy(ctx context.Context, col string, limit uint64) ([]model.CountBy, error) {
	query, args, err := countByQuery(sq.Question, col, limit).ToSql()
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: build count by %s", col)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: count by %s", col)
	}
	defer rows.Close() //nolint:errcheck

	out := []model.CountBy{}
	for rows.Next() {
		var c model.CountBy
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan count by %s", col)
		}
		out = append(out, c)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: count by %s iterate", col)
}

// Runs

func (s *SQLiteStore) RecordRun(ctx context.Context, run *model.RunLog) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	sm := run.Summary
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, mode, scraped, processed, added, updated, rejected, errors, duration_seconds, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Mode), sm.Scraped, sm.Processed, sm.Added, sm.Updated, sm.Rejected, sm.Errors,
		sm.DurationSeconds, sqliteTime(run.StartedAt), sqliteTime(run.FinishedAt),
	)
	return persistErr("insert run", err)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.RunLog, error) {
	query, args, err := sq.Select(runColumns...).From("runs").
		OrderBy("started_at DESC", "id ASC").Limit(listLimit(limit)).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build list runs")
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.RunLog
	for rows.Next() {
		var r model.RunLog
		var started, finished string
		sm := &r.Summary
		if err := rows.Scan(&r.ID, &r.Mode, &sm.Scraped, &sm.Processed, &sm.Added, &sm.Updated,
			&sm.Rejected, &sm.Errors, &sm.DurationSeconds, &started, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if r.StartedAt, err = parseSQLiteTime(started); err != nil {
			return nil, err
		}
		if r.FinishedAt, err = parseSQLiteTime(finished); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// Dead-letter queue

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	item, err := json.Marshal(entry.Item)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal dlq item")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dead_letter_queue
		 (id, item, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   error = excluded.error, error_type = excluded.error_type, retry_count = excluded.retry_count,
		   next_retry_at = excluded.next_retry_at, last_failed_at = excluded.last_failed_at`,
		entry.ID, string(item), entry.Error, entry.ErrorType, entry.RetryCount, entry.MaxRetries,
		sqliteTime(entry.NextRetryAt), sqliteTime(entry.CreatedAt), sqliteTime(entry.LastFailedAt),
	)
	return persistErr("enqueue dlq", err)
}

func (s *SQLiteStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query, args, err := dequeueDLQQuery(sq.Question, sqliteTime(time.Now()), filter.ErrorType, filter.Limit).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build dequeue dlq")
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dequeue dlq")
	}
	defer rows.Close() //nolint:errcheck

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var item, next, created, lastFailed string
		if err := rows.Scan(&e.ID, &item, &e.Error, &e.ErrorType, &e.RetryCount, &e.MaxRetries,
			&next, &created, &lastFailed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq entry")
		}
		if err := json.Unmarshal([]byte(item), &e.Item); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal dlq item")
		}
		for _, f := range []struct {
			dst *time.Time
			src string
		}{{&e.NextRetryAt, next}, {&e.CreatedAt, created}, {&e.LastFailedAt, lastFailed}} {
			if *f.dst, err = parseSQLiteTime(f.src); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: dequeue dlq iterate")
}

func (s *SQLiteStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = ?, error = ?, last_failed_at = ?
		 WHERE id = ?`,
		sqliteTime(nextRetryAt), lastErr, sqliteTime(time.Now()), id,
	)
	if err != nil {
		return persistErr("increment dlq retry", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("dlq_entry not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dead_letter_queue WHERE id = ?`, id)
	return persistErr("remove dlq", err)
}

func (s *SQLiteStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count dlq")
}

// helpers

func sqliteTime(t time.Time) any {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	return t, eris.Wrapf(err, "sqlite: parse time %q", s)
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "project %s", id)
	}
	return nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteProject(row scannable) (*model.ProjectRecord, error) {
	var p model.ProjectRecord
	var start, announced sql.NullString
	var first, last string
	err := row.Scan(
		&p.ID, &p.ProjectName, &p.ProjectNameLocalized, &p.Status, &p.Owner,
		&p.MainContractor, &p.Consultant, &p.Region, &p.City, &p.Category,
		&p.Description, &p.ProjectValue, &p.ProjectSize, &start,
		&announced, &p.ConfidenceScore, &p.IsVerified,
		&p.DataCompleteness, &first, &last, &p.UpdateCount, &p.SourceCount,
	)
	if err != nil {
		return nil, err
	}
	if p.FirstDiscovered, err = parseSQLiteTime(first); err != nil {
		return nil, err
	}
	if p.LastUpdated, err = parseSQLiteTime(last); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		dst **time.Time
		src sql.NullString
	}{{&p.StartDate, start}, {&p.AnnouncementDate, announced}} {
		if !f.src.Valid {
			continue
		}
		t, err := parseSQLiteTime(f.src.String)
		if err != nil {
			return nil, err
		}
		*f.dst = &t
	}
	return &p, nil
}
