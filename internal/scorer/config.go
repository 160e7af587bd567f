// Package scorer computes project confidence scores from field
// completeness and source evidence.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/project-registry/internal/config"
)

// DefaultScorerConfig returns a config.ScorerConfig with the standard
// weights. Weights sum to 1.
func DefaultScorerConfig() config.ScorerConfig {
	return config.ScorerConfig{
		// Weights (sum = 1).
		SourceCountWeight:  0.3,
		CompletenessWeight: 0.3,
		ReliabilityWeight:  0.2,
		RecencyWeight:      0.2,

		// Signals.
		SourceSaturation: 5,
		RecencySignal:    0.8,

		// Tier bands.
		OfficialScore:     0.92,
		CorroboratedScore: 0.78,
		SingleSourceScore: 0.62,
	}
}

// WeightSum returns the sum of all component weights.
func WeightSum(c config.ScorerConfig) float64 {
	return c.SourceCountWeight + c.CompletenessWeight + c.ReliabilityWeight + c.RecencyWeight
}

// ValidateConfig checks that a ScorerConfig is internally consistent.
func ValidateConfig(c config.ScorerConfig) error {
	var errs []string

	weights := map[string]float64{
		"source_count_weight": c.SourceCountWeight,
		"completeness_weight": c.CompletenessWeight,
		"reliability_weight":  c.ReliabilityWeight,
		"recency_weight":      c.RecencyWeight,
	}
	for name, w := range weights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}

	sum := WeightSum(c)
	if math.Abs(sum-1) > 0.01 {
		errs = append(errs, fmt.Sprintf("weights should sum to 1, got %.2f", sum))
	}

	if c.SourceSaturation <= 0 {
		errs = append(errs, "source_saturation must be > 0")
	}
	if c.RecencySignal < 0 || c.RecencySignal > 1 {
		errs = append(errs, "recency_signal must be between 0 and 1")
	}

	// Tier bands must be ordered so corroboration never lowers a score.
	if !(c.SingleSourceScore <= c.CorroboratedScore && c.CorroboratedScore <= c.OfficialScore && c.OfficialScore <= 1) {
		errs = append(errs, "tier scores must satisfy single <= corroborated <= official <= 1")
	}

	if c.SourceSaturation > 0 && maxSingleSourceScore(c) >= c.CorroboratedScore {
		errs = append(errs, fmt.Sprintf("single-source weighted score can reach %.2f, must stay below corroborated_score", maxSingleSourceScore(c)))
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// maxSingleSourceScore is the highest weighted score a record backed by one
// source can reach.
func maxSingleSourceScore(c config.ScorerConfig) float64 {
	return c.SourceCountWeight*math.Min(1/float64(c.SourceSaturation), 1) +
		c.CompletenessWeight + c.ReliabilityWeight + c.RecencyWeight*c.RecencySignal
}
