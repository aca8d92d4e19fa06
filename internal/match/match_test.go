package match

import (
	"math"
	"testing"
	"time"

	"github.com/pdiddy/triage-engine/pkg/types"
)

func matchConfig() types.MatchConfig {
	return types.MatchConfig{
		ThresholdMatch:     0.75,
		ThresholdDuplicate: 0.80,
		ThresholdExact:     0.90,
		TopK:               3,
	}
}

func project(id string, embedding []float64, cachedAt time.Time) types.Project {
	return types.Project{ID: id, Name: id, Embedding: embedding, CachedAt: cachedAt}
}

func TestSimilaritySelfIsOne(t *testing.T) {
	vectors := [][]float64{
		{1, 0, 0},
		{0.3, -0.7, 0.2},
		{5, 5, 5, 5},
	}
	for _, v := range vectors {
		if got := Similarity(v, v); math.Abs(got-1.0) > 1e-9 {
			t.Errorf("Similarity(v, v) = %v, want 1.0", got)
		}
	}
}

func TestSimilarityRemap(t *testing.T) {
	// Opposite vectors: cosine -1 remaps to 0.
	if got := Similarity([]float64{1, 0}, []float64{-1, 0}); math.Abs(got) > 1e-9 {
		t.Errorf("opposite vectors = %v, want 0", got)
	}
	// Orthogonal vectors: cosine 0 remaps to 0.5.
	if got := Similarity([]float64{1, 0}, []float64{0, 1}); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("orthogonal vectors = %v, want 0.5", got)
	}
}

func TestRankZeroTaskVector(t *testing.T) {
	projects := []types.Project{project("p1", []float64{1, 0}, time.Now())}
	if got := Rank([]float64{0, 0}, projects, matchConfig()); got != nil {
		t.Errorf("zero vector produced matches: %v", got)
	}
	if got := Rank(nil, projects, matchConfig()); got != nil {
		t.Errorf("nil vector produced matches: %v", got)
	}
}

func TestRankThresholdAndOrder(t *testing.T) {
	now := time.Now()
	task := []float64{1, 0, 0}
	projects := []types.Project{
		project("far", []float64{-1, 0.2, 0}, now),      // below threshold
		project("close", []float64{1, 0.1, 0}, now),     // high
		project("closer", []float64{1, 0.01, 0}, now),   // higher
		project("no-embedding", nil, now),               // skipped
	}

	results := Rank(task, projects, matchConfig())
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2: %v", len(results), results)
	}
	if results[0].ProjectID != "closer" || results[1].ProjectID != "close" {
		t.Errorf("order = [%s %s], want [closer close]", results[0].ProjectID, results[1].ProjectID)
	}
	if results[0].Rank != 1 || results[1].Rank != 2 {
		t.Errorf("ranks = [%d %d], want [1 2]", results[0].Rank, results[1].Rank)
	}
	for _, r := range results {
		if r.Similarity < 0.75 || r.Similarity > 1 {
			t.Errorf("similarity %v outside [0.75, 1]", r.Similarity)
		}
	}
}

func TestRankTieBreakByRecency(t *testing.T) {
	task := []float64{1, 0}
	older := project("older", []float64{2, 0}, time.Now().Add(-time.Hour))
	newer := project("newer", []float64{3, 0}, time.Now())

	// Identical direction: identical similarity; newer must rank first.
	results := Rank(task, []types.Project{older, newer}, matchConfig())
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ProjectID != "newer" {
		t.Errorf("top match = %s, want newer", results[0].ProjectID)
	}
}

func TestRankTruncatesToTopK(t *testing.T) {
	task := []float64{1, 0}
	var projects []types.Project
	for i := 0; i < 10; i++ {
		projects = append(projects, project(string(rune('a'+i)), []float64{1, 0.001 * float64(i)}, time.Now()))
	}

	results := Rank(task, projects, matchConfig())
	if len(results) != 3 {
		t.Errorf("got %d results, want top 3", len(results))
	}
}

func TestDetect(t *testing.T) {
	cfg := matchConfig()

	tests := []struct {
		name          string
		matches       []types.MatchResult
		wantDuplicate bool
		wantExact     bool
		wantTargets   int
	}{
		{"no matches", nil, false, false, 0},
		{
			"below duplicate threshold",
			[]types.MatchResult{{ProjectID: "p1", Similarity: 0.78, Rank: 1}},
			false, false, 0,
		},
		{
			"duplicate",
			[]types.MatchResult{
				{ProjectID: "p1", Similarity: 0.85, Rank: 1},
				{ProjectID: "p2", Similarity: 0.76, Rank: 2},
			},
			true, false, 1,
		},
		{
			"exact with multiple targets",
			[]types.MatchResult{
				{ProjectID: "p1", Similarity: 0.95, Rank: 1},
				{ProjectID: "p2", Similarity: 0.82, Rank: 2},
				{ProjectID: "p3", Similarity: 0.79, Rank: 3},
			},
			true, true, 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Detect(tt.matches, cfg)
			if v.IsDuplicate != tt.wantDuplicate {
				t.Errorf("IsDuplicate = %v, want %v", v.IsDuplicate, tt.wantDuplicate)
			}
			if v.Exact != tt.wantExact {
				t.Errorf("Exact = %v, want %v", v.Exact, tt.wantExact)
			}
			if len(v.Targets) != tt.wantTargets {
				t.Errorf("Targets = %v, want %d", v.Targets, tt.wantTargets)
			}
			if tt.wantDuplicate && v.Confidence != tt.matches[0].Similarity {
				t.Errorf("Confidence = %v, want top score %v", v.Confidence, tt.matches[0].Similarity)
			}
		})
	}
}

// Raising the duplicate threshold never turns a non-duplicate into a
// duplicate.
func TestDetectMonotonicInThreshold(t *testing.T) {
	matches := []types.MatchResult{
		{ProjectID: "p1", Similarity: 0.86, Rank: 1},
		{ProjectID: "p2", Similarity: 0.81, Rank: 2},
	}

	prevDuplicates := true
	for _, threshold := range []float64{0.75, 0.80, 0.85, 0.87, 0.95} {
		cfg := matchConfig()
		cfg.ThresholdDuplicate = threshold
		v := Detect(matches, cfg)
		if v.IsDuplicate && !prevDuplicates {
			t.Fatalf("threshold %v produced a duplicate after a lower threshold did not", threshold)
		}
		prevDuplicates = v.IsDuplicate
	}
}

func TestKeywordOverlap(t *testing.T) {
	full := KeywordOverlap("semantic search projects", "semantic search projects")
	if math.Abs(full-1.0) > 1e-9 {
		t.Errorf("identical texts = %v, want 1.0", full)
	}

	none := KeywordOverlap("semantic search", "billing invoices")
	if none != 0 {
		t.Errorf("disjoint texts = %v, want 0", none)
	}

	partial := KeywordOverlap("semantic search ranking", "semantic search billing")
	if partial <= 0 || partial >= 1 {
		t.Errorf("partial overlap = %v, want in (0,1)", partial)
	}

	if KeywordOverlap("", "semantic") != 0 {
		t.Error("empty side must yield 0")
	}
}

func TestBlendConfidence(t *testing.T) {
	if got := BlendConfidence(0.9, 0); got != 0.9 {
		t.Errorf("zero overlap = %v, want raw similarity", got)
	}
	if got := BlendConfidence(0.8, 0.6); math.Abs(got-0.7) > 1e-9 {
		t.Errorf("blend = %v, want 0.7", got)
	}
}
