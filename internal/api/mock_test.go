package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/project-registry/internal/model"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, items []model.RawItem) model.Summary {
	args := m.Called(ctx, items)
	return args.Get(0).(model.Summary)
}

// RunStreaming emits the events configured as the second return value.
func (m *mockRunner) RunStreaming(ctx context.Context, items []model.RawItem, emit func(model.ProgressEvent)) model.Summary {
	args := m.Called(ctx, items)
	for _, ev := range args.Get(1).([]model.ProgressEvent) {
		emit(ev)
	}
	return args.Get(0).(model.Summary)
}
