package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/project-registry/internal/model"
)

// Source produces raw items from one upstream location.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.RawItem, error)
}

// Collect fetches every source with at most workers in flight and returns
// the items in source order. A failing source is logged and skipped.
func Collect(ctx context.Context, sources []Source, workers int) []model.RawItem {
	results := make([][]model.RawItem, len(sources))
	var (
		mu     sync.Mutex
		failed int
	)

	var g errgroup.Group
	g.SetLimit(max(1, min(workers, MaxWorkers)))
	for i, src := range sources {
		g.Go(func() error {
			items, err := src.Fetch(ctx)
			if err != nil {
				zap.L().Warn("pipeline: source failed, skipping",
					zap.String("source", src.Name()),
					zap.Error(err),
				)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			results[i] = items
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	var out []model.RawItem
	for _, items := range results {
		out = append(out, items...)
	}
	zap.L().Info("pipeline: collection complete",
		zap.Int("sources", len(sources)),
		zap.Int("failed", failed),
		zap.Int("items", len(out)),
	)
	return out
}
