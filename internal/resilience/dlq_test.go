package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/project-registry/internal/model"
)

func TestNewDLQEntry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	item := model.RawItem{Text: "NEOM announces The Line", SourceURL: "https://neom.com/news/1"}

	e := NewDLQEntry(item, NewTransientError(errors.New("database is locked"), 0), 3, now)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, item, e.Item)
	assert.Equal(t, "database is locked", e.Error)
	assert.Equal(t, ErrorTypeTransient, e.ErrorType)
	assert.Equal(t, 3, e.MaxRetries)
	assert.Equal(t, now.Add(time.Minute), e.NextRetryAt)
	assert.True(t, e.CanRetry())

	e = NewDLQEntry(item, errors.New("constraint failed"), 3, now)
	assert.Equal(t, ErrorTypePermanent, e.ErrorType)
}

func TestDLQEntry_CanRetry(t *testing.T) {
	e := DLQEntry{RetryCount: 2, MaxRetries: 3}
	assert.True(t, e.CanRetry())

	e.RetryCount = 3
	assert.False(t, e.CanRetry())
}

func TestDLQBackoff(t *testing.T) {
	assert.Equal(t, time.Minute, DLQBackoff(0))
	assert.Equal(t, 2*time.Minute, DLQBackoff(1))
	assert.Equal(t, 8*time.Minute, DLQBackoff(3))
	assert.Equal(t, 6*time.Hour, DLQBackoff(20))
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, ErrorTypeTransient, ClassifyError(NewTransientError(errors.New("503"), 503)))
	assert.Equal(t, ErrorTypePermanent, ClassifyError(errors.New("bad")))
}
