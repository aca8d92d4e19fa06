// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package score

import (
	"errors"
	"fmt"
	"math"

	"github.com/pdiddy/triage-engine/pkg/types"
)

// ErrWeights signals misconfigured scoring weights. Fatal at startup:
// the scorer never silently re-normalizes.
var ErrWeights = errors.New("scoring weights misconfigured")

// weightTolerance absorbs float representation noise in the sum check.
const weightTolerance = 1e-9

// ValidateWeights checks that every weight is in [0,1] and that the four
// weights sum to exactly 1.0.
func ValidateWeights(cfg types.ScoringConfig) error {
	weights := map[string]float64{
		"weight_policy":     cfg.WeightPolicy,
		"weight_similarity": cfg.WeightSimilarity,
		"weight_clarity":    cfg.WeightClarity,
		"weight_red_flags":  cfg.WeightRedFlags,
	}
	for name, w := range weights {
		if w < 0 || w > 1 {
			return fmt.Errorf("%w: %s = %v outside [0,1]", ErrWeights, name, w)
		}
	}

	sum := cfg.WeightPolicy + cfg.WeightSimilarity + cfg.WeightClarity + cfg.WeightRedFlags
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %v, want 1.0", ErrWeights, sum)
	}
	return nil
}

// Alignment combines the evaluation signals into one scalar in [0,1]:
//
//	w_policy·policy + w_similarity·bestMatch + w_clarity·clarity + w_redflags·(1 - redFlagDensity)
//
// bestMatch is the best corpus similarity (zero when the corpus is empty
// or the task vector degenerate). Callers validate cfg with
// ValidateWeights before use.
func Alignment(cfg types.ScoringConfig, policyScore, bestMatch, clarity, redFlagDensity float64) float64 {
	a := cfg.WeightPolicy*policyScore +
		cfg.WeightSimilarity*bestMatch +
		cfg.WeightClarity*clarity +
		cfg.WeightRedFlags*(1-redFlagDensity)
	return clamp01(a)
}
