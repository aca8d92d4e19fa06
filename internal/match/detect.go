// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package match

import "github.com/pdiddy/triage-engine/pkg/types"

// DuplicateVerdict interprets ranked matches into a duplicate decision.
type DuplicateVerdict struct {
	// IsDuplicate is true when the top match reaches the duplicate
	// threshold.
	IsDuplicate bool `json:"is_duplicate"`

	// Exact is true when the top match also reaches the exact threshold.
	// The decision engine uses it to raise overall confidence.
	Exact bool `json:"exact,omitempty"`

	// Confidence is the top match's similarity score.
	Confidence float64 `json:"confidence"`

	// Targets lists every project at or above the duplicate threshold,
	// best first, supporting multi-candidate consolidation.
	Targets []string `json:"targets,omitempty"`
}

// Detect applies the duplicate and exact thresholds to ranked matches.
// Matches must be sorted best-first, as Rank produces them.
func Detect(matches []types.MatchResult, cfg types.MatchConfig) DuplicateVerdict {
	dupThreshold := cfg.ThresholdDuplicate
	if dupThreshold <= 0 {
		dupThreshold = 0.80
	}
	exactThreshold := cfg.ThresholdExact
	if exactThreshold <= 0 {
		exactThreshold = 0.90
	}

	if len(matches) == 0 || matches[0].Similarity < dupThreshold {
		return DuplicateVerdict{}
	}

	v := DuplicateVerdict{
		IsDuplicate: true,
		Exact:       matches[0].Similarity >= exactThreshold,
		Confidence:  matches[0].Similarity,
	}
	for _, m := range matches {
		if m.Similarity >= dupThreshold {
			v.Targets = append(v.Targets, m.ProjectID)
		}
	}
	return v
}

// BlendConfidence averages the top similarity with the keyword overlap
// between task and project text. Thresholding always uses the raw
// similarity; the blend only refines reported confidence.
func BlendConfidence(similarity, overlap float64) float64 {
	if overlap <= 0 {
		return similarity
	}
	return (similarity + overlap) / 2
}
