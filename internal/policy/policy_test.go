package policy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func adminRules() []Rule {
	return []Rule{
		{Category: "intelligence-features", Signal: SignalKeyword, Value: "semantic", Polarity: PolarityAdmit, Weight: 0.2},
		{Category: "intelligence-features", Signal: SignalKeyword, Value: "embeddings", Polarity: PolarityAdmit, Weight: 0.2},
		{Category: "core-platform", Signal: SignalKeyword, Value: "integration", Polarity: PolarityAdmit, Weight: 0.15},
		{Category: "personal-household", Signal: SignalKeyword, Value: "curtain", Polarity: PolarityReject, Weight: 0.3},
		{Category: "personal-household", Signal: SignalKeyword, Value: "shopping", Polarity: PolarityReject, Weight: 0.3},
		{Category: "personal-household", Signal: SignalPattern, Value: `\bhome (improvement|maintenance)\b`, Polarity: PolarityReject, Weight: 0.95},
		{Category: "generic-vague", Signal: SignalList, Value: "tbd", Polarity: PolarityReject, Weight: 0.2},
	}
}

func testPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := New(adminRules(), []string{"not sure", "figure out", "shopping list"}, 0.9)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestClassify(t *testing.T) {
	p := testPolicy(t)

	tests := []struct {
		name         string
		text         string
		wantCategory Category
		wantMatched  int
	}{
		{"admit keywords push above band", "add semantic embeddings search", CategoryAdmit, 2},
		{"reject keywords push below band", "curtain shopping for the house", CategoryReject, 2},
		{"no matches stays ambiguous", "write quarterly summary", CategoryAmbiguous, 0},
		{"exact list membership", "tbd", CategoryReject, 1},
		{"list rule needs whole text", "tbd later maybe", CategoryAmbiguous, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := p.Classify(tt.text)
			if v.Category != tt.wantCategory {
				t.Errorf("Category = %q, want %q (score %v)", v.Category, tt.wantCategory, v.Score)
			}
			if len(v.MatchedRules) != tt.wantMatched {
				t.Errorf("MatchedRules = %v, want %d entries", v.MatchedRules, tt.wantMatched)
			}
		})
	}
}

func TestClassifyHardVeto(t *testing.T) {
	p := testPolicy(t)

	// Admit signals present, but the heavy reject rule must win outright.
	v := p.Classify("semantic embeddings for home improvement planning")
	if !v.HardVeto {
		t.Fatal("expected hard veto")
	}
	if v.Category != CategoryReject {
		t.Errorf("Category = %q, want reject", v.Category)
	}
	if v.Score != 0 {
		t.Errorf("Score = %v, want 0", v.Score)
	}
	if len(v.MatchedRules) != 1 {
		t.Errorf("MatchedRules = %v, want only the veto rule", v.MatchedRules)
	}
}

func TestClassifyWordBoundary(t *testing.T) {
	rules := []Rule{
		{Category: "core-platform", Signal: SignalKeyword, Value: "api", Polarity: PolarityAdmit, Weight: 0.3},
	}
	p, err := New(rules, nil, 0.9)
	if err != nil {
		t.Fatal(err)
	}

	if v := p.Classify("expose the api endpoint"); len(v.MatchedRules) != 1 {
		t.Error("standalone word should match")
	}
	if v := p.Classify("rapid prototyping"); len(v.MatchedRules) != 0 {
		t.Error("embedded substring should not match")
	}
	if v := p.Classify("api-first design"); len(v.MatchedRules) != 1 {
		t.Error("hyphen-bounded word should match")
	}
	// A multibyte letter adjoining the keyword is still inside a word.
	if v := p.Classify("caféapi rollout"); len(v.MatchedRules) != 0 {
		t.Error("word with multibyte letter prefix should not match")
	}
	if v := p.Classify("café api étude"); len(v.MatchedRules) != 1 {
		t.Error("standalone word between multibyte words should match")
	}
}

func TestClassifyPhraseKeyword(t *testing.T) {
	rules := []Rule{
		{Category: "intelligence-features", Signal: SignalKeyword, Value: "semantic search", Polarity: PolarityAdmit, Weight: 0.3},
	}
	p, err := New(rules, nil, 0.9)
	if err != nil {
		t.Fatal(err)
	}
	if v := p.Classify("implement semantic search for projects"); len(v.MatchedRules) != 1 {
		t.Error("phrase should match as substring")
	}
}

func TestClassifyScoreClamped(t *testing.T) {
	rules := []Rule{
		{Category: "a", Signal: SignalKeyword, Value: "alpha", Polarity: PolarityAdmit, Weight: 0.9},
		{Category: "b", Signal: SignalKeyword, Value: "beta", Polarity: PolarityAdmit, Weight: 0.9},
	}
	p, err := New(rules, nil, 0.95)
	if err != nil {
		t.Fatal(err)
	}
	v := p.Classify("alpha beta")
	if v.Score != 1.0 {
		t.Errorf("Score = %v, want clamped 1.0", v.Score)
	}
}

func TestClassifyTags(t *testing.T) {
	p := testPolicy(t)
	v := p.Classify("semantic embeddings integration")
	want := map[string]bool{"intelligence-features": true, "core-platform": true}
	if len(v.Tags) != 2 {
		t.Fatalf("Tags = %v, want 2 deduplicated categories", v.Tags)
	}
	for _, tag := range v.Tags {
		if !want[tag] {
			t.Errorf("unexpected tag %q", tag)
		}
	}
}

func TestRedFlagDensity(t *testing.T) {
	p := testPolicy(t)

	tests := []struct {
		text string
		want float64
	}{
		{"clean actionable description", 0},
		{"not sure about this one", 1.0 / 3.0},
		{"not sure, need to figure out the shopping list", 1.0},
	}
	for _, tt := range tests {
		if got := p.RedFlagDensity(tt.text); got != tt.want {
			t.Errorf("RedFlagDensity(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name  string
		rules []Rule
	}{
		{"no rules", nil},
		{"unknown signal", []Rule{{Category: "x", Signal: "fuzzy", Value: "v", Polarity: PolarityAdmit, Weight: 0.5}}},
		{"unknown polarity", []Rule{{Category: "x", Signal: SignalKeyword, Value: "v", Polarity: "veto", Weight: 0.5}}},
		{"zero weight", []Rule{{Category: "x", Signal: SignalKeyword, Value: "v", Polarity: PolarityAdmit, Weight: 0}}},
		{"weight above one", []Rule{{Category: "x", Signal: SignalKeyword, Value: "v", Polarity: PolarityAdmit, Weight: 1.5}}},
		{"empty value", []Rule{{Category: "x", Signal: SignalKeyword, Polarity: PolarityAdmit, Weight: 0.5}}},
		{"bad pattern", []Rule{{Category: "x", Signal: SignalPattern, Value: "([", Polarity: PolarityAdmit, Weight: 0.5}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.rules, nil, 0.9); !errors.Is(err, ErrInvalid) {
				t.Errorf("New() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	doc := `rules:
  - category: intelligence-features
    signal: keyword
    value: semantic
    polarity: admit
    weight: 0.2
  - category: personal-household
    signal: keyword
    value: shopping
    polarity: reject
    weight: 0.95
red_flags:
  - not sure
`
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path, 0.9)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if v := p.Classify("semantic triage"); v.Category != CategoryAdmit {
		t.Errorf("Category = %q, want admit", v.Category)
	}
	if v := p.Classify("grocery shopping run"); !v.HardVeto {
		t.Error("expected hard veto from the heavy reject rule")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), 0.9); err == nil {
		t.Error("expected error for missing file")
	}
}
