package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/project-registry/internal/model"
	"github.com/sells-group/project-registry/internal/resilience"
)

// ReplayResult counts the outcome of a dead-letter replay.
type ReplayResult struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// ReplayDLQ re-runs up to limit due dead-letter entries sequentially. An
// entry that now reaches a terminal non-error outcome is removed; one that
// fails again is rescheduled with a longer backoff. Replays do not record a
// run.
func (p *Pipeline) ReplayDLQ(ctx context.Context, filter resilience.DLQFilter) (ReplayResult, error) {
	entries, err := p.store.DequeueDLQ(ctx, filter)
	if err != nil {
		return ReplayResult{}, eris.Wrap(err, "pipeline: dequeue dlq")
	}

	var res ReplayResult
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		res.Attempted++
		log := zap.L().With(zap.String("dlq_id", entry.ID), zap.String("source_url", entry.Item.SourceURL))

		item := p.ProcessItem(ctx, entry.Item)
		if item.Outcome != model.OutcomeError {
			if err := p.store.RemoveDLQ(ctx, entry.ID); err != nil {
				return res, eris.Wrap(err, "pipeline: remove dlq entry")
			}
			if item.Outcome == model.OutcomeAdded || item.Outcome == model.OutcomeUpdated {
				p.publish(ctx, item)
			}
			res.Succeeded++
			log.Info("pipeline: dlq entry replayed", zap.String("outcome", string(item.Outcome)))
			continue
		}

		res.Failed++
		next := p.opts.Now().Add(resilience.DLQBackoff(entry.RetryCount + 1))
		if err := p.store.IncrementDLQRetry(ctx, entry.ID, next, item.Err.Error()); err != nil {
			return res, eris.Wrap(err, "pipeline: reschedule dlq entry")
		}
		log.Warn("pipeline: dlq replay failed",
			zap.Int("retry_count", entry.RetryCount+1),
			zap.Time("next_retry_at", next),
			zap.Error(item.Err),
		)
	}
	return res, nil
}
