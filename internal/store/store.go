// Package store persists projects, their evidence sources, update and run
// logs, and the dead-letter queue. SQLite and Postgres implementations share
// the same interface and schema shape.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/project-registry/internal/model"
	"github.com/sells-group/project-registry/internal/resilience"
)

// ErrNotFound is returned when a project id does not exist.
var ErrNotFound = eris.New("store: not found")

// DefaultListLimit caps ListProjects when the filter sets no limit.
const DefaultListLimit = 100

// PersistenceError reports a failed store write. The pipeline counts it as
// an item error and continues with the batch.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "store: " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistence reports whether err wraps a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// ProjectFilter specifies criteria for listing projects. Text filters match
// case-insensitively; Contractor and Search match substrings.
type ProjectFilter struct {
	Region     string       `json:"region,omitempty"`
	City       string       `json:"city,omitempty"`
	Category   string       `json:"category,omitempty"`
	Status     model.Status `json:"status,omitempty"`
	Contractor string       `json:"contractor,omitempty"`
	Search     string       `json:"search,omitempty"`
	Limit      int          `json:"limit,omitempty"`
	Offset     int          `json:"offset,omitempty"`
}

// Tx is the set of project operations available inside a transaction.
type Tx interface {
	// CreateProject inserts p, assigning an id when p.ID is empty.
	CreateProject(ctx context.Context, p *model.ProjectRecord) error
	GetProject(ctx context.Context, id string) (*model.ProjectRecord, error)
	// FindCandidates returns projects whose lower-cased name contains
	// namePrefix or whose name key contains keyPrefix. An empty keyPrefix
	// disables the key condition.
	FindCandidates(ctx context.Context, namePrefix, keyPrefix string) ([]model.ProjectRecord, error)
	// UpdateProject overwrites the mutable columns of p. Returns ErrNotFound
	// when no row has p.ID.
	UpdateProject(ctx context.Context, p *model.ProjectRecord) error
	// AddSource attaches src to its project. It reports false, without
	// error, when the project already has a source with the same URL.
	AddSource(ctx context.Context, src *model.SourceRecord) (bool, error)
	ListSources(ctx context.Context, projectID string) ([]model.SourceRecord, error)
	AddUpdateLog(ctx context.Context, entry *model.UpdateLog) error
}

// Store defines the persistence interface for the project registry.
type Store interface {
	Tx

	// InTx runs fn in a transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(Tx) error) error

	// Queries
	ListProjects(ctx context.Context, filter ProjectFilter) ([]model.ProjectRecord, error)
	ListUpdateLogs(ctx context.Context, projectID string) ([]model.UpdateLog, error)
	Stats(ctx context.Context, now time.Time) (*model.RegistryStats, error)

	// Runs
	RecordRun(ctx context.Context, run *model.RunLog) error
	ListRuns(ctx context.Context, limit int) ([]model.RunLog, error)

	// Dead-letter queue
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
	CountDLQ(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// New opens the store named by driver ("sqlite" or "postgres").
func New(ctx context.Context, driver, dsn string, maxConns int32) (Store, error) {
	switch driver {
	case "sqlite":
		s, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgres(ctx, dsn, &PoolConfig{MaxConns: maxConns})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

func listLimit(limit int) uint64 {
	if limit <= 0 {
		return DefaultListLimit
	}
	return uint64(limit)
}

func monthStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
