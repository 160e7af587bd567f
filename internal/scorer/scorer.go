package scorer

import (
	"math"

	"github.com/sells-group/project-registry/internal/config"
	"github.com/sells-group/project-registry/internal/lexicon"
	"github.com/sells-group/project-registry/internal/model"
)

// Component names used in Breakdown.
const (
	ComponentSourceCount  = "source_count"
	ComponentCompleteness = "completeness"
	ComponentReliability  = "reliability"
	ComponentRecency      = "recency"
)

// Assessment is the confidence state derived from a project's fields and
// sources.
type Assessment struct {
	Score        float64 `json:"score"`
	Verified     bool    `json:"verified"`
	Completeness float64 `json:"completeness"`
	Weighted     float64 `json:"weighted"`
	Tiered       bool    `json:"tiered"`
}

// Breakdown is a weighted score together with its component signals.
type Breakdown struct {
	Score      float64            `json:"score"`
	Components map[string]float64 `json:"components"`
}

// Scorer computes confidence scores. It holds no mutable state, so a score
// is always reproducible from persisted fields and sources.
type Scorer struct {
	cfg config.ScorerConfig
	lex *lexicon.Lexicon
}

// New creates a Scorer. A zero config uses DefaultScorerConfig.
func New(cfg config.ScorerConfig, lx *lexicon.Lexicon) *Scorer {
	if WeightSum(cfg) == 0 {
		cfg = DefaultScorerConfig()
	}
	if cfg.SourceSaturation <= 0 {
		cfg.SourceSaturation = DefaultScorerConfig().SourceSaturation
	}
	return &Scorer{cfg: cfg, lex: lx}
}

// Score is the weighted path: four signals combined with the configured
// weights, rounded to two decimal places.
func (s *Scorer) Score(f model.ProjectFields, sourceCount int, reliability float64) float64 {
	return s.Breakdown(f, sourceCount, reliability).Score
}

// Breakdown computes the weighted score and exposes each signal.
func (s *Scorer) Breakdown(f model.ProjectFields, sourceCount int, reliability float64) Breakdown {
	components := map[string]float64{
		ComponentSourceCount:  math.Min(float64(sourceCount)/float64(s.cfg.SourceSaturation), 1.0),
		ComponentCompleteness: CompletenessSignal(f),
		ComponentReliability:  clamp01(reliability),
		ComponentRecency:      s.cfg.RecencySignal,
	}
	weights := map[string]float64{
		ComponentSourceCount:  s.cfg.SourceCountWeight,
		ComponentCompleteness: s.cfg.CompletenessWeight,
		ComponentReliability:  s.cfg.ReliabilityWeight,
		ComponentRecency:      s.cfg.RecencyWeight,
	}

	var total float64
	for _, k := range []string{ComponentSourceCount, ComponentCompleteness, ComponentReliability, ComponentRecency} {
		total += components[k] * weights[k]
	}
	return Breakdown{Score: round2(clamp01(total)), Components: components}
}

// CompletenessSignal weighs the four required fields at 0.7 and the six
// optional fields at 0.3.
func CompletenessSignal(f model.ProjectFields) float64 {
	required := count(f.ProjectName != "", f.Status != "", f.Region != "", f.Category != "")
	optional := count(f.Owner != "", f.MainContractor != "", f.City != "", f.Description != "", f.StartDate != nil, f.ProjectValue != "")
	return 0.7*float64(required)/4 + 0.3*float64(optional)/6
}

// IsOfficial reports whether a source is flagged official or is reliable
// enough to count as one.
func (s *Scorer) IsOfficial(src model.SourceRecord) bool {
	return src.Official || src.ReliabilityScore >= s.lex.OfficialThreshold()
}

// Tier is the corroboration path. Any official source yields the official
// band, two or more distinct sources the corroborated band, and a single
// non-official source the unverified band.
func (s *Scorer) Tier(sources []model.SourceRecord) (score float64, verified bool) {
	for _, src := range sources {
		if s.IsOfficial(src) {
			return s.cfg.OfficialScore, true
		}
	}
	if distinctURLs(sources) >= 2 {
		return s.cfg.CorroboratedScore, true
	}
	return s.cfg.SingleSourceScore, false
}

// Recompute derives the confidence state of a persisted project from its
// fields and its full source set. Once a project holds any source the tiered
// band applies; Weighted keeps the first-pass score for reporting.
func (s *Scorer) Recompute(f model.ProjectFields, sources []model.SourceRecord) Assessment {
	best := -1.0
	for _, src := range sources {
		best = math.Max(best, src.ReliabilityScore)
	}
	if best < 0 {
		best = s.lex.ReliabilityOf("")
	}

	a := Assessment{
		Completeness: f.Completeness(),
		Weighted:     s.Score(f, distinctURLs(sources), best),
	}
	if len(sources) == 0 {
		a.Score = a.Weighted
		return a
	}
	a.Score, a.Verified = s.Tier(sources)
	a.Tiered = true
	return a
}

func distinctURLs(sources []model.SourceRecord) int {
	seen := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		seen[src.URL] = struct{}{}
	}
	return len(seen)
}

func count(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
