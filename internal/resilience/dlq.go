package resilience

import (
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/project-registry/internal/model"
)

// Error classes recorded on dead-letter entries.
const (
	ErrorTypeTransient = "transient"
	ErrorTypePermanent = "permanent"
)

// DLQEntry is a raw item whose processing failed and may be replayed later.
type DLQEntry struct {
	ID           string        `json:"id"`
	Item         model.RawItem `json:"item"`
	Error        string        `json:"error"`
	ErrorType    string        `json:"error_type"`
	RetryCount   int           `json:"retry_count"`
	MaxRetries   int           `json:"max_retries"`
	NextRetryAt  time.Time     `json:"next_retry_at"`
	CreatedAt    time.Time     `json:"created_at"`
	LastFailedAt time.Time     `json:"last_failed_at"`
}

// DLQFilter specifies criteria for reading due entries.
type DLQFilter struct {
	ErrorType string `json:"error_type,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// NewDLQEntry builds an entry for an item that failed at now.
func NewDLQEntry(item model.RawItem, err error, maxRetries int, now time.Time) DLQEntry {
	return DLQEntry{
		ID:           uuid.New().String(),
		Item:         item,
		Error:        err.Error(),
		ErrorType:    ClassifyError(err),
		MaxRetries:   maxRetries,
		NextRetryAt:  now.Add(DLQBackoff(0)),
		CreatedAt:    now,
		LastFailedAt: now,
	}
}

// CanRetry reports whether the entry has retries left.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// DLQBackoff is the delay before replay attempt retryCount+1: one minute,
// doubling per retry, capped at six hours.
func DLQBackoff(retryCount int) time.Duration {
	d := time.Minute << min(retryCount, 12)
	return min(d, 6*time.Hour)
}

// ClassifyError categorizes an error as transient or permanent.
func ClassifyError(err error) string {
	if IsTransient(err) {
		return ErrorTypeTransient
	}
	return ErrorTypePermanent
}
