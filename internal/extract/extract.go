// Package extract turns raw scraped text into candidate project records.
//
// Two strategies implement Extractor: a deterministic rule-based extractor
// and a model-backed extractor. Fallback chains them so that a failing
// primary hands the item to the secondary.
package extract

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/project-registry/internal/model"
)

// Rejection explains why text did not yield a project. It is a normal
// outcome, not an error.
type Rejection struct {
	Reason model.RejectReason
	Detail string
}

// Result is the outcome of one extraction: exactly one of Record and
// Rejection is set.
type Result struct {
	Record    *model.ExtractedRecord
	Rejection *Rejection
}

// Rejected reports whether the result is a rejection.
func (r Result) Rejected() bool { return r.Rejection != nil }

func reject(reason model.RejectReason, detail string) Result {
	return Result{Rejection: &Rejection{Reason: reason, Detail: detail}}
}

// Extractor derives a project record from text. Errors mean the extractor
// could not reach a decision; rejections are reported in Result.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, text, sourceURL string) (Result, error)
}

// Fallback runs Primary and, when it errors, Secondary. A rejection from
// Primary is final. A nil Primary delegates straight to Secondary.
type Fallback struct {
	Primary   Extractor
	Secondary Extractor
}

// NewFallback chains primary in front of secondary.
func NewFallback(primary, secondary Extractor) *Fallback {
	return &Fallback{Primary: primary, Secondary: secondary}
}

// Name implements Extractor.
func (f *Fallback) Name() string {
	if f.Primary == nil {
		return f.Secondary.Name()
	}
	return f.Primary.Name() + "+" + f.Secondary.Name()
}

// Extract implements Extractor.
func (f *Fallback) Extract(ctx context.Context, text, sourceURL string) (Result, error) {
	if f.Primary != nil {
		res, err := f.Primary.Extract(ctx, text, sourceURL)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return Result{}, eris.Wrap(ctx.Err(), "extract: cancelled")
		}
		zap.L().Warn("extract: primary extractor failed, falling back",
			zap.String("primary", f.Primary.Name()),
			zap.String("secondary", f.Secondary.Name()),
			zap.String("source_url", sourceURL),
			zap.Error(err),
		)
	}
	return f.Secondary.Extract(ctx, text, sourceURL)
}
