// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package match ranks nearest-neighbor projects for a task vector and
// interprets the scores into a duplicate verdict.
// Implements: prd005-similarity.
package match

import (
	"math"
	"sort"

	"github.com/pdiddy/triage-engine/internal/normalize"
	"github.com/pdiddy/triage-engine/pkg/types"
)

// cosine returns the cosine similarity of a and b in [-1,1]. Mismatched
// lengths or a zero-magnitude vector yield 0 rather than a fault.
func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Similarity remaps cosine similarity onto [0,1] via (x+1)/2 so it
// composes with the rest of the scoring model.
func Similarity(a, b []float64) float64 {
	return (cosine(a, b) + 1) / 2
}

// isZero reports whether v has no magnitude.
func isZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Rank computes the remapped similarity between taskVector and every
// project embedding, keeps scores at or above the match threshold, sorts
// descending with ties broken by the project's CachedAt (newer first),
// and truncates to the configured top K. An all-zero task vector yields
// no matches.
func Rank(taskVector []float64, projects []types.Project, cfg types.MatchConfig) []types.MatchResult {
	if len(taskVector) == 0 || isZero(taskVector) {
		return nil
	}

	threshold := cfg.ThresholdMatch
	if threshold <= 0 {
		threshold = 0.75
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 3
	}

	type scored struct {
		result   types.MatchResult
		cachedAt int64
	}

	var candidates []scored
	for _, p := range projects {
		if len(p.Embedding) == 0 {
			continue
		}
		score := Similarity(taskVector, p.Embedding)
		if score < threshold {
			continue
		}
		candidates = append(candidates, scored{
			result:   types.MatchResult{ProjectID: p.ID, Similarity: score},
			cachedAt: p.CachedAt.UnixNano(),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].result.Similarity != candidates[j].result.Similarity {
			return candidates[i].result.Similarity > candidates[j].result.Similarity
		}
		// Boundary ties favor currently-relevant projects.
		return candidates[i].cachedAt > candidates[j].cachedAt
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	results := make([]types.MatchResult, len(candidates))
	for i, c := range candidates {
		c.result.Rank = i + 1
		results[i] = c.result
	}
	return results
}

// Best returns the highest remapped similarity between taskVector and
// any project embedding, before thresholding. Zero when the corpus is
// empty or the task vector is degenerate. The alignment scorer uses it
// so a task is not starved of its similarity component merely because
// no project cleared the match threshold.
func Best(taskVector []float64, projects []types.Project) float64 {
	if len(taskVector) == 0 || isZero(taskVector) {
		return 0
	}
	best := 0.0
	for _, p := range projects {
		if len(p.Embedding) == 0 {
			continue
		}
		if s := Similarity(taskVector, p.Embedding); s > best {
			best = s
		}
	}
	return best
}

// KeywordOverlap returns the Jaccard overlap of the content words of two
// texts, in [0,1]. Zero when either side has no keywords.
func KeywordOverlap(a, b string) float64 {
	setA := normalize.KeywordSet(a)
	setB := normalize.KeywordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}
