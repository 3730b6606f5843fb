// Package scorer scores, deduplicates, and ranks code records.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/reverscodes/codes-cli/internal/config"
)

// DefaultScoringConfig returns a config.ScoringConfig with the standard
// weights. Weights sum to 1.
func DefaultScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		CodeWeight:   0.4,
		RewardWeight: 0.3,
		SourceWeight: 0.2,
		LengthWeight: 0.1,

		TrustedSources: []string{"progameguides", "beebom", "ign", "dexerto", "videogamer"},
		IdealMinLen:    5,
		IdealMaxLen:    15,

		MinQuality: 0.7,
		MaxCodes:   15,
	}
}

// WeightSum returns the sum of all quality weights.
func WeightSum(c config.ScoringConfig) float64 {
	return c.CodeWeight + c.RewardWeight + c.SourceWeight + c.LengthWeight
}

// ValidateConfig checks that a ScoringConfig is internally consistent.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string

	weights := map[string]float64{
		"code_weight":   c.CodeWeight,
		"reward_weight": c.RewardWeight,
		"source_weight": c.SourceWeight,
		"length_weight": c.LengthWeight,
	}
	for name, w := range weights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}

	if sum := WeightSum(c); math.Abs(sum-1) > 0.001 {
		errs = append(errs, fmt.Sprintf("weights should sum to 1, got %.3f", sum))
	}

	if c.IdealMinLen < 0 || (c.IdealMaxLen > 0 && c.IdealMaxLen < c.IdealMinLen) {
		errs = append(errs, "ideal length range is invalid")
	}
	if c.MinQuality < 0 || c.MinQuality > 1 {
		errs = append(errs, "min_quality must be between 0 and 1")
	}
	if c.MaxCodes < 0 {
		errs = append(errs, "max_codes must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
