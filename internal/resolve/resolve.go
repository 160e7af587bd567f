// Package resolve decides whether an extracted record describes a project
// already in the registry, and merges corroborating evidence into it.
package resolve

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/project-registry/internal/model"
	"github.com/sells-group/project-registry/internal/normalize"
)

// Default resolver settings.
const (
	DefaultThreshold = 0.85
	DefaultPrefixLen = 20
)

// Action is the outcome of a resolve decision.
type Action string

const (
	ActionCreate Action = "create"
	ActionMerge  Action = "merge"
)

// Decision is the result of Resolve. Match is set only for ActionMerge.
type Decision struct {
	Action     Action
	Match      *model.ProjectRecord
	Similarity float64
}

// CandidateFinder returns stored projects whose lower-cased name contains
// namePrefix or whose name key contains keyPrefix.
type CandidateFinder interface {
	FindCandidates(ctx context.Context, namePrefix, keyPrefix string) ([]model.ProjectRecord, error)
}

// Config controls candidate generation and the match threshold.
type Config struct {
	Threshold float64
	PrefixLen int
}

// Resolver matches extracted records against stored projects. The
// substring search only generates candidates; a merge additionally needs
// name similarity at or above the threshold and an equal region.
type Resolver struct {
	cfg      Config
	embedder Embedder
}

// NewResolver creates a Resolver. A nil embedder uses Jaccard similarity.
func NewResolver(cfg Config, embedder Embedder) *Resolver {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.PrefixLen <= 0 {
		cfg.PrefixLen = DefaultPrefixLen
	}
	return &Resolver{cfg: cfg, embedder: embedder}
}

// Prefixes returns the candidate search terms for a project name.
func (r *Resolver) Prefixes(name string) (namePrefix, keyPrefix string) {
	namePrefix = normalize.Truncate(strings.ToLower(strings.TrimSpace(name)), r.cfg.PrefixLen)
	keyPrefix = normalize.Truncate(normalize.NameKey(name), r.cfg.PrefixLen)
	return namePrefix, keyPrefix
}

// FindCandidates runs the loose pre-filter for rec.
func (r *Resolver) FindCandidates(ctx context.Context, finder CandidateFinder, rec *model.ExtractedRecord) ([]model.ProjectRecord, error) {
	namePrefix, keyPrefix := r.Prefixes(rec.ProjectName)
	if namePrefix == "" {
		return nil, nil
	}
	candidates, err := finder.FindCandidates(ctx, namePrefix, keyPrefix)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: find candidates")
	}
	return candidates, nil
}

// Resolve finds candidates for rec and decides between merge and create.
func (r *Resolver) Resolve(ctx context.Context, finder CandidateFinder, rec *model.ExtractedRecord) (Decision, error) {
	candidates, err := r.FindCandidates(ctx, finder, rec)
	if err != nil {
		return Decision{}, err
	}
	return r.Decide(ctx, candidates, rec), nil
}

// Decide picks the most similar candidate in the same region whose score
// reaches the threshold. Ties keep the earlier candidate.
func (r *Resolver) Decide(ctx context.Context, candidates []model.ProjectRecord, rec *model.ExtractedRecord) Decision {
	best := Decision{Action: ActionCreate}
	for i := range candidates {
		c := &candidates[i]
		if !strings.EqualFold(c.Region, rec.Region) {
			continue
		}
		sim := r.Similarity(ctx, c.ProjectName, rec.ProjectName)
		if sim >= r.cfg.Threshold && sim > best.Similarity {
			best = Decision{Action: ActionMerge, Match: c, Similarity: sim}
		}
	}
	if best.Action == ActionMerge {
		zap.L().Debug("resolve: matched existing project",
			zap.String("project_id", best.Match.ID),
			zap.String("name", rec.ProjectName),
			zap.Float64("similarity", best.Similarity),
		)
	}
	return best
}

// Similarity compares two names with the embedder when one is configured,
// and with Jaccard otherwise or when embedding fails.
func (r *Resolver) Similarity(ctx context.Context, a, b string) float64 {
	if normalize.NameKey(a) == normalize.NameKey(b) && normalize.NameKey(a) != "" {
		return 1
	}
	if r.embedder != nil {
		sim, err := r.cosine(ctx, a, b)
		if err == nil {
			return sim
		}
		zap.L().Warn("resolve: embedding failed, using jaccard", zap.Error(err))
	}
	return Jaccard(a, b)
}

func (r *Resolver) cosine(ctx context.Context, a, b string) (float64, error) {
	va, err := r.embedder.Embed(ctx, a)
	if err != nil {
		return 0, eris.Wrap(err, "resolve: embed name")
	}
	vb, err := r.embedder.Embed(ctx, b)
	if err != nil {
		return 0, eris.Wrap(err, "resolve: embed name")
	}
	return Cosine(va, vb)
}
