package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/project-registry/internal/db"
	"github.com/sells-group/project-registry/internal/model"
	"github.com/sells-group/project-registry/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pgQueries
	pool db.Pool
}

// pgQueries implements Tx over either the pool or an open transaction.
type pgQueries struct {
	q db.Querier
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = min(minConns, maxConns)
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresWithPool(pool), nil
}

func newPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pgQueries: pgQueries{q: pool}, pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS projects (
	id                     TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	start_date             TIMESTAMPTZ,
	announcement_date      TIMESTAMPTZ,
	confidence_score       DOUBLE PRECISION NOT NULL DEFAULT 0,
	is_verified            BOOLEAN NOT NULL DEFAULT false,
	data_completeness      DOUBLE PRECISION NOT NULL DEFAULT 0,
	first_discovered       TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_updated           TIMESTAMPTZ NOT NULL DEFAULT now(),
	update_count           INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sources (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	project_id        TEXT NOT NULL REFERENCES projects(id),
	url               TEXT NOT NULL,
	source_type       TEXT NOT NULL,
	title             TEXT NOT NULL DEFAULT '',
	reliability_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	official          BOOLEAN NOT NULL DEFAULT false,
	discovered_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (project_id, url)
);

CREATE TABLE IF NOT EXISTS update_logs (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	project_id     TEXT NOT NULL REFERENCES projects(id),
	update_type    TEXT NOT NULL,
	fields_changed JSONB NOT NULL DEFAULT '[]',
	source_url     TEXT NOT NULL DEFAULT '',
	at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	mode             TEXT NOT NULL,
	scraped          INTEGER NOT NULL DEFAULT 0,
	processed        INTEGER NOT NULL DEFAULT 0,
	added            INTEGER NOT NULL DEFAULT 0,
	updated          INTEGER NOT NULL DEFAULT 0,
	rejected         INTEGER NOT NULL DEFAULT 0,
	errors           INTEGER NOT NULL DEFAULT 0,
	duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
	started_at       TIMESTAMPTZ NOT NULL,
	finished_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	item           JSONB NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_projects_name_lower ON projects(name_lower);
CREATE INDEX IF NOT EXISTS idx_projects_region ON projects(region);
CREATE INDEX IF NOT EXISTS idx_projects_last_updated ON projects(last_updated DESC);
CREATE INDEX IF NOT EXISTS idx_sources_project_id ON sources(project_id);
CREATE INDEX IF NOT EXISTS idx_update_logs_project_id ON update_logs(project_id);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at)
  WHERE retry_count < max_retries;
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return persistErr("begin", err)
	}
	if err := fn(pgQueries{q: tx}); err != nil {
		tx.Rollback(ctx) //nolint:errcheck
		return err
	}
	return persistErr("commit", tx.Commit(ctx))
}

func pgTime(t time.Time) any { return t.UTC() }

// Projects

func (q pgQueries) CreateProject(ctx context.Context, p *model.ProjectRecord) error {
	prepareProject(p, time.Now().UTC())
	query, args, err := insertProjectQuery(sq.Dollar, pgTime, p).ToSql()
	if err != nil {
		return eris.Wrap(err, "postgres: build insert project")
	}
	_, err = q.q.Exec(ctx, query, args...)
	return persistErr("insert project", err)
}

func (q pgQueries) GetProject(ctx context.Context, id string) (*model.ProjectRecord, error) {
	query, args, err := selectProjects(sq.Dollar).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build get project")
	}
	p, err := scanPgProject(q.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "project %s", id)
	}
	return p, eris.Wrapf(err, "postgres: get project %s", id)
}

func (q pgQueries) FindCandidates(ctx context.Context, namePrefix, keyPrefix string) ([]model.ProjectRecord, error) {
	return q.queryProjects(ctx, candidatesQuery(sq.Dollar, "strpos", namePrefix, keyPrefix), "find candidates")
}

func (q pgQueries) UpdateProject(ctx context.Context, p *model.ProjectRecord) error {
	query, args, err := updateProjectQuery(sq.Dollar, pgTime, p).ToSql()
	if err != nil {
		return eris.Wrap(err, "postgres: build update project")
	}
	tag, err := q.q.Exec(ctx, query, args...)
	if err != nil {
		return persistErr("update project", err)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "project %s", p.ID)
	}
	return nil
}

func (q pgQueries) queryProjects(ctx context.Context, b sq.SelectBuilder, action string) ([]model.ProjectRecord, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: build %s", action)
	}
	rows, err := q.q.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", action)
	}
	defer rows.Close()

	var out []model.ProjectRecord
	for rows.Next() {
		p, err := scanPgProject(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: %s", action)
		}
		out = append(out, *p)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: %s iterate", action)
}

// Sources

func (q pgQueries) AddSource(ctx context.Context, src *model.SourceRecord) (bool, error) {
	if src.ID == "" {
		src.ID = uuid.New().String()
	}
	if src.DiscoveredAt.IsZero() {
		src.DiscoveredAt = time.Now().UTC()
	}
	tag, err := q.q.Exec(ctx,
		`INSERT INTO sources (id, project_id, url, source_type, title, reliability_score, official, discovered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (project_id, url) DO NOTHING`,
		src.ID, src.ProjectID, src.URL, string(src.SourceType), src.Title,
		src.ReliabilityScore, src.Official, src.DiscoveredAt,
	)
	if err != nil {
		return false, persistErr("insert source", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (q pgQueries) ListSources(ctx context.Context, projectID string) ([]model.SourceRecord, error) {
	query, args, err := sq.Select(sourceColumns...).
		From("sources").
		Where(sq.Eq{"project_id": projectID}).
		OrderBy("discovered_at ASC", "id ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build list sources")
	}
	rows, err := q.q.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sources")
	}
	defer rows.Close()

	var out []model.SourceRecord
	for rows.Next() {
		var src model.SourceRecord
		var sourceType string
		if err := rows.Scan(&src.ID, &src.ProjectID, &src.URL, &sourceType, &src.Title,
			&src.ReliabilityScore, &src.Official, &src.DiscoveredAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan source")
		}
		src.SourceType = model.SourceType(sourceType)
		out = append(out, src)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list sources iterate")
}

// Update logs

func (q pgQueries) AddUpdateLog(ctx context.Context, entry *model.UpdateLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	fields, err := json.Marshal(nonNilStrings(entry.FieldsChanged))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal fields changed")
	}
	_, err = q.q.Exec(ctx,
		`INSERT INTO update_logs (id, project_id, update_type, fields_changed, source_url, at) VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.ProjectID, string(entry.UpdateType), fields, entry.SourceURL, entry.At,
	)
	return persistErr("insert update log", err)
}

func (s *PostgresStore) ListUpdateLogs(ctx context.Context, projectID string) ([]model.UpdateLog, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, update_type, fields_changed, source_url, at
		 FROM update_logs WHERE project_id = $1 ORDER BY at ASC, id ASC`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list update logs")
	}
	defer rows.Close()

	var out []model.UpdateLog
	for rows.Next() {
		var l model.UpdateLog
		var updateType string
		var fields []byte
		if err := rows.Scan(&l.ID, &l.ProjectID, &updateType, &fields, &l.SourceURL, &l.At); err != nil {
			return nil, eris.Wrap(err, "postgres: scan update log")
		}
		l.UpdateType = model.UpdateType(updateType)
		if err := json.Unmarshal(fields, &l.FieldsChanged); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal fields changed")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list update logs iterate")
}

// Queries

func (s *PostgresStore) ListProjects(ctx context.Context, filter ProjectFilter) ([]model.ProjectRecord, error) {
	return s.queryProjects(ctx, listProjectsQuery(sq.Dollar, filter), "list projects")
}

func (s *PostgresStore) Stats(ctx context.Context, now time.Time) (*model.RegistryStats, error) {
	var st model.RegistryStats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(confidence_score), 0) FROM projects`,
	).Scan(&st.TotalProjects, &st.AvgConfidence)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats totals")
	}
	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM projects WHERE first_discovered >= $1`,
		monthStart(now),
	).Scan(&st.NewThisMonth)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats new this month")
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

func (s *PostgresStore) countBy(ctx context.Context, col string, limit uint64) ([]model.CountBy, error) {
	query, args, err := countByQuery(sq.Dollar, col, limit).ToSql()
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: build count by %s", col)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: count by %s", col)
	}
	defer rows.Close()

	out := []model.CountBy{}
	for rows.Next() {
		var c model.CountBy
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan count by %s", col)
		}
		out = append(out, c)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: count by %s iterate", col)
}

// Runs

func (s *PostgresStore) RecordRun(ctx context.Context, run *model.RunLog) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	sm := run.Summary
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, mode, scraped, processed, added, updated, rejected, errors, duration_seconds, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		run.ID, string(run.Mode), sm.Scraped, sm.Processed, sm.Added, sm.Updated, sm.Rejected, sm.Errors,
		sm.DurationSeconds, run.StartedAt, run.FinishedAt,
	)
	return persistErr("insert run", err)
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.RunLog, error) {
	query, args, err := sq.Select(runColumns...).From("runs").
		OrderBy("started_at DESC", "id ASC").Limit(listLimit(limit)).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build list runs")
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []model.RunLog
	for rows.Next() {
		var r model.RunLog
		var mode string
		sm := &r.Summary
		if err := rows.Scan(&r.ID, &mode, &sm.Scraped, &sm.Processed, &sm.Added, &sm.Updated,
			&sm.Rejected, &sm.Errors, &sm.DurationSeconds, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Mode = model.RunMode(mode)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// Dead-letter queue

func (s *PostgresStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	item, err := json.Marshal(entry.Item)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal dlq item")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO dead_letter_queue
		 (id, item, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   error = $3, error_type = $4, retry_count = $5,
		   next_retry_at = $7, last_failed_at = $9`,
		entry.ID, item, entry.Error, entry.ErrorType, entry.RetryCount, entry.MaxRetries,
		entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return persistErr("enqueue dlq", err)
}

func (s *PostgresStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query, args, err := dequeueDLQQuery(sq.Dollar, time.Now().UTC(), filter.ErrorType, filter.Limit).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build dequeue dlq")
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: dequeue dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var item []byte
		if err := rows.Scan(&e.ID, &item, &e.Error, &e.ErrorType, &e.RetryCount, &e.MaxRetries,
			&e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dlq entry")
		}
		if err := json.Unmarshal(item, &e.Item); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal dlq item")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: dequeue dlq iterate")
}

func (s *PostgresStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = $1, error = $2, last_failed_at = now()
		 WHERE id = $3`,
		nextRetryAt, lastErr, id,
	)
	if err != nil {
		return persistErr("increment dlq retry", err)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("dlq_entry not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM dead_letter_queue WHERE id = $1`, id)
	return persistErr("remove dlq", err)
}

func (s *PostgresStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count dlq")
}

func scanPgProject(row pgx.Row) (*model.ProjectRecord, error) {
	var p model.ProjectRecord
	var status string
	err := row.Scan(
		&p.ID, &p.ProjectName, &p.ProjectNameLocalized, &status, &p.Owner,
		&p.MainContractor, &p.Consultant, &p.Region, &p.City, &p.Category,
		&p.Description, &p.ProjectValue, &p.ProjectSize, &p.StartDate,
		&p.AnnouncementDate, &p.ConfidenceScore, &p.IsVerified,
		&p.DataCompleteness, &p.FirstDiscovered, &p.LastUpdated, &p.UpdateCount, &p.SourceCount,
	)
	if err != nil {
		return nil, err
	}
	p.Status = model.Status(status)
	return &p, nil
}
