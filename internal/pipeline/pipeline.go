// Package pipeline runs raw items through extraction, scoring, identity
// resolution and persistence, in batch or streaming mode.
package pipeline

import (
	"context"
	"errors"
	"math"
	"runtime/debug"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/project-registry/internal/extract"
	"github.com/sells-group/project-registry/internal/lexicon"
	"github.com/sells-group/project-registry/internal/model"
	"github.com/sells-group/project-registry/internal/normalize"
	"github.com/sells-group/project-registry/internal/resilience"
	"github.com/sells-group/project-registry/internal/resolve"
	"github.com/sells-group/project-registry/internal/scorer"
	"github.com/sells-group/project-registry/internal/store"
)

// MaxWorkers caps the parallel fan-out.
const MaxWorkers = 50

// Publisher receives accepted projects. Failures are logged and never change
// an item's outcome.
type Publisher interface {
	Publish(ctx context.Context, ev model.ProjectEvent) error
}

// Options tunes a Pipeline.
type Options struct {
	// Workers bounds parallel item processing. Values below 1 run items
	// sequentially.
	Workers int
	// DLQMaxRetries enables the dead-letter queue when positive.
	DLQMaxRetries int
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Pipeline orchestrates per-item processing. It is safe for concurrent use.
type Pipeline struct {
	store     store.Store
	extractor extract.Extractor
	scorer    *scorer.Scorer
	resolver  *resolve.Resolver
	lex       *lexicon.Lexicon
	publisher Publisher
	opts      Options
	locks     *KeyedMutex
}

// New creates a Pipeline with all dependencies. publisher may be nil.
func New(
	st store.Store,
	ex extract.Extractor,
	sc *scorer.Scorer,
	rs *resolve.Resolver,
	lx *lexicon.Lexicon,
	publisher Publisher,
	opts Options,
) *Pipeline {
	opts.Workers = max(1, min(opts.Workers, MaxWorkers))
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Pipeline{
		store:     st,
		extractor: ex,
		scorer:    sc,
		resolver:  rs,
		lex:       lx,
		publisher: publisher,
		opts:      opts,
		locks:     NewKeyedMutex(),
	}
}

// ItemResult is the terminal state of one item.
type ItemResult struct {
	Item    model.RawItem
	Outcome model.Outcome
	Project *model.ProjectRecord
	Reason  model.RejectReason
	Err     error
}

// Run processes items as a batch and returns the aggregate counts. It always
// returns a Summary; per-item failures are counted, never propagated.
func (p *Pipeline) Run(ctx context.Context, items []model.RawItem) model.Summary {
	return p.execute(ctx, model.RunModeBatch, items, nil)
}

// RunStreaming processes items like Run and calls emit once per processed
// item and once more with the completion event. emit is called from a
// single goroutine.
func (p *Pipeline) RunStreaming(ctx context.Context, items []model.RawItem, emit func(model.ProgressEvent)) model.Summary {
	return p.execute(ctx, model.RunModeStream, items, emit)
}

// execute is the single reduction behind both modes.
func (p *Pipeline) execute(ctx context.Context, mode model.RunMode, items []model.RawItem, emit func(model.ProgressEvent)) model.Summary {
	started := p.opts.Now()
	log := zap.L().With(zap.String("mode", string(mode)), zap.Int("items", len(items)))
	log.Info("pipeline: run started", zap.Int("workers", p.opts.Workers), zap.String("extractor", p.extractor.Name()))

	t := &tally{sum: model.Summary{Scraped: len(items)}}
	for res := range p.process(ctx, items) {
		ev := t.add(res)
		if emit != nil {
			emit(ev)
		}
	}

	finished := p.opts.Now()
	t.sum.DurationSeconds = math.Round(finished.Sub(started).Seconds()*100) / 100
	if emit != nil {
		done := t.event()
		done.Completed = true
		emit(done)
	}

	run := &model.RunLog{Mode: mode, Summary: t.sum, StartedAt: started, FinishedAt: finished}
	if err := p.store.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		log.Warn("pipeline: failed to record run", zap.Error(err))
	}
	log.Info("pipeline: run complete",
		zap.Int("added", t.sum.Added),
		zap.Int("updated", t.sum.Updated),
		zap.Int("rejected", t.sum.Rejected),
		zap.Int("errors", t.sum.Errors),
		zap.Float64("duration_seconds", t.sum.DurationSeconds),
	)
	return t.sum
}

// process fans items out to at most Workers goroutines and yields results in
// completion order. Items not yet started when ctx is cancelled resolve to
// errors without being attempted.
func (p *Pipeline) process(ctx context.Context, items []model.RawItem) <-chan ItemResult {
	out := make(chan ItemResult)
	go func() {
		defer close(out)
		var g errgroup.Group
		g.SetLimit(p.opts.Workers)
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				out <- ItemResult{Item: item, Outcome: model.OutcomeError, Err: eris.Wrap(err, "pipeline: run cancelled")}
				continue
			}
			g.Go(func() error {
				out <- p.handle(ctx, item)
				return nil
			})
		}
		g.Wait() //nolint:errcheck
	}()
	return out
}

// handle processes one item and runs the side effects of its outcome.
func (p *Pipeline) handle(ctx context.Context, item model.RawItem) ItemResult {
	res := p.ProcessItem(ctx, item)
	switch res.Outcome {
	case model.OutcomeAdded, model.OutcomeUpdated:
		p.publish(ctx, res)
	case model.OutcomeError:
		p.deadLetter(ctx, res)
	}
	return res
}

// ProcessItem moves one item through the state machine. Panics are recovered
// and reported as errors.
func (p *Pipeline) ProcessItem(ctx context.Context, item model.RawItem) (res ItemResult) {
	res.Item = item
	log := zap.L().With(zap.String("source_url", item.SourceURL))
	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline: item panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			res.Outcome = model.OutcomeError
			res.Project = nil
			res.Err = eris.Errorf("pipeline: panic: %v", r)
		}
	}()

	ex, err := p.extractor.Extract(ctx, item.Text, item.SourceURL)
	if err != nil {
		log.Error("pipeline: extraction failed", zap.Error(err))
		res.Outcome, res.Err = model.OutcomeError, eris.Wrap(err, "pipeline: extract")
		return res
	}
	if ex.Rejected() {
		log.Info("pipeline: item rejected",
			zap.String("reason", string(ex.Rejection.Reason)),
			zap.String("detail", ex.Rejection.Detail),
		)
		res.Outcome, res.Reason = model.OutcomeRejected, ex.Rejection.Reason
		return res
	}

	rec := ex.Record
	if rec.AnnouncementDate == nil && item.PublishedAt != nil {
		published := *item.PublishedAt
		rec.AnnouncementDate = &published
	}

	firstPass := p.scorer.Score(rec.ProjectFields, 1, p.sourceFor(item).ReliabilityScore)
	outcome, project, err := p.persist(ctx, item, rec)
	if err != nil {
		log.Error("pipeline: persist failed", zap.String("project", rec.ProjectName), zap.Error(err))
		res.Outcome, res.Err = model.OutcomeError, eris.Wrap(err, "pipeline: persist")
		return res
	}
	log.Info("pipeline: item accepted",
		zap.String("outcome", string(outcome)),
		zap.String("project_id", project.ID),
		zap.String("project", project.ProjectName),
		zap.String("script", string(normalize.DetectScript(item.Text))),
		zap.Float64("first_pass", firstPass),
		zap.Float64("confidence", project.ConfidenceScore),
	)
	res.Outcome, res.Project = outcome, project
	return res
}

func (p *Pipeline) publish(ctx context.Context, res ItemResult) {
	if p.publisher == nil || res.Project == nil {
		return
	}
	ev := model.ProjectEvent{
		Outcome:   res.Outcome,
		Project:   *res.Project,
		SourceURL: res.Item.SourceURL,
		At:        p.opts.Now(),
	}
	if err := p.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		zap.L().Warn("pipeline: publish failed", zap.String("project_id", res.Project.ID), zap.Error(err))
	}
}

func (p *Pipeline) deadLetter(ctx context.Context, res ItemResult) {
	if p.opts.DLQMaxRetries <= 0 || res.Err == nil {
		return
	}
	if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
		return
	}
	entry := resilience.NewDLQEntry(res.Item, res.Err, p.opts.DLQMaxRetries, p.opts.Now())
	if err := p.store.EnqueueDLQ(context.WithoutCancel(ctx), entry); err != nil {
		zap.L().Warn("pipeline: dlq enqueue failed", zap.String("source_url", res.Item.SourceURL), zap.Error(err))
	}
}

// tally accumulates counts. Only the reducing goroutine touches it.
type tally struct {
	sum model.Summary
}

func (t *tally) add(res ItemResult) model.ProgressEvent {
	t.sum.Processed++
	switch res.Outcome {
	case model.OutcomeAdded:
		t.sum.Added++
	case model.OutcomeUpdated:
		t.sum.Updated++
	case model.OutcomeRejected:
		t.sum.Rejected++
	default:
		t.sum.Errors++
	}

	ev := t.event()
	ev.Project = res.Project
	if res.Outcome == model.OutcomeRejected {
		reason := res.Reason
		ev.RejectedReason = &reason
	}
	if res.Outcome == model.OutcomeError {
		ev.Error = true
		if res.Err != nil {
			ev.Message = res.Err.Error()
		}
	}
	return ev
}

func (t *tally) event() model.ProgressEvent {
	return model.ProgressEvent{
		Scraped:   t.sum.Scraped,
		Processed: t.sum.Processed,
		Added:     t.sum.Added,
		Updated:   t.sum.Updated,
		Rejected:  t.sum.Rejected,
		Errors:    t.sum.Errors,
	}
}
