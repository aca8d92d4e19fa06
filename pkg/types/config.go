// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "triage-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// NormalizeConfig holds settings for text normalization.
type NormalizeConfig struct {
	// MaxLength is the maximum normalized text length in characters
	// (default 5000). Truncation never splits mid-word.
	MaxLength int `json:"max_length" yaml:"max_length"`
}

// PolicyConfig holds settings for the domain policy.
type PolicyConfig struct {
	// Path is the YAML policy file to load at startup (default
	// "triage-policy.yaml").
	Path string `json:"path" yaml:"path"`

	// HardVetoThreshold is the weight above which a reject rule
	// short-circuits the whole evaluation (default 0.9).
	HardVetoThreshold float64 `json:"hard_veto_threshold" yaml:"hard_veto_threshold"`
}

// EmbeddingConfig holds settings for the embedding provider and its cache.
type EmbeddingConfig struct {
	HTTPConfig `yaml:",inline"`

	// Model is the embedding model identifier (e.g. "text-embedding-004").
	// The cache keys include it, so changing models invalidates old entries.
	Model string `json:"model" yaml:"model"`

	// Dimension is the vector length produced by Model (e.g. 768).
	Dimension int `json:"dimension" yaml:"dimension"`

	// APIKey authenticates with the embedding provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BatchSize is the maximum number of texts per provider call (default 100).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// CacheTTL is how long cached vectors stay valid (default 720h = 30 days).
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`
}

// TrackerConfig holds settings for the issue-tracker collaborator.
type TrackerConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey authenticates with the tracker API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// CorpusMaxAge is how long a project snapshot is served before a
	// refresh is attempted (default 1h).
	CorpusMaxAge time.Duration `json:"corpus_max_age" yaml:"corpus_max_age"`
}

// MatchConfig holds similarity thresholds for matching and duplicate detection.
type MatchConfig struct {
	// ThresholdMatch is the minimum remapped similarity to report a match
	// (default 0.75).
	ThresholdMatch float64 `json:"threshold_match" yaml:"threshold_match"`

	// ThresholdDuplicate marks a match as a duplicate (default 0.80).
	ThresholdDuplicate float64 `json:"threshold_duplicate" yaml:"threshold_duplicate"`

	// ThresholdExact marks a match as near-identical (default 0.90).
	ThresholdExact float64 `json:"threshold_exact" yaml:"threshold_exact"`

	// TopK is the maximum number of matches carried on a decision (default 3).
	TopK int `json:"top_k" yaml:"top_k"`
}

// ScoringConfig holds the alignment weights and decision thresholds.
// The four weights must sum to exactly 1.0; validation fails fast at
// startup rather than silently re-normalizing.
type ScoringConfig struct {
	// WeightPolicy scales the domain policy score (default 0.40).
	WeightPolicy float64 `json:"weight_policy" yaml:"weight_policy"`

	// WeightSimilarity scales the best match score (default 0.30).
	WeightSimilarity float64 `json:"weight_similarity" yaml:"weight_similarity"`

	// WeightClarity scales the description clarity score (default 0.20).
	WeightClarity float64 `json:"weight_clarity" yaml:"weight_clarity"`

	// WeightRedFlags scales (1 - red flag density) (default 0.10).
	WeightRedFlags float64 `json:"weight_red_flags" yaml:"weight_red_flags"`

	// AlignmentThreshold is the minimum alignment score for an admit
	// outcome (default 0.75).
	AlignmentThreshold float64 `json:"alignment_threshold" yaml:"alignment_threshold"`

	// ClarityMin is the clarity score below which the engine asks for
	// clarification (default 0.30).
	ClarityMin float64 `json:"clarity_min" yaml:"clarity_min"`
}

// StoreConfig holds settings for the local SQLite store backing the
// embedding cache, the corpus snapshot, and the decision audit log.
type StoreConfig struct {
	// Dir is the directory holding the database file (default "triage").
	Dir string `json:"dir" yaml:"dir"`

	// DecisionTTL is how long audit records are kept (default 168h = 7 days).
	DecisionTTL time.Duration `json:"decision_ttl" yaml:"decision_ttl"`
}

// ServerConfig holds settings for the HTTP evaluate surface.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr"`

	// RefreshSchedule is the cron expression for background corpus
	// refreshes (default "@every 1h"). Empty disables the schedule.
	RefreshSchedule string `json:"refresh_schedule" yaml:"refresh_schedule"`
}

// Config groups all stage configurations for the triage engine.
type Config struct {
	Normalize NormalizeConfig `json:"normalize" yaml:"normalize"`
	Policy    PolicyConfig    `json:"policy" yaml:"policy"`
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`
	Tracker   TrackerConfig   `json:"tracker" yaml:"tracker"`
	Match     MatchConfig     `json:"match" yaml:"match"`
	Scoring   ScoringConfig   `json:"scoring" yaml:"scoring"`
	Store     StoreConfig     `json:"store" yaml:"store"`
	Server    ServerConfig    `json:"server" yaml:"server"`
}

// Defaults returns a Config populated with every documented default.
func Defaults() Config {
	return Config{
		Normalize: NormalizeConfig{MaxLength: 5000},
		Policy:    PolicyConfig{Path: "triage-policy.yaml", HardVetoThreshold: 0.9},
		Embedding: EmbeddingConfig{
			HTTPConfig: HTTPConfig{Timeout: 30 * time.Second, UserAgent: "triage-engine/0.1"},
			Model:      "text-embedding-004",
			Dimension:  768,
			BatchSize:  100,
			CacheTTL:   30 * 24 * time.Hour,
		},
		Tracker: TrackerConfig{
			HTTPConfig:   HTTPConfig{Timeout: 30 * time.Second, UserAgent: "triage-engine/0.1"},
			CorpusMaxAge: time.Hour,
		},
		Match: MatchConfig{
			ThresholdMatch:     0.75,
			ThresholdDuplicate: 0.80,
			ThresholdExact:     0.90,
			TopK:               3,
		},
		Scoring: ScoringConfig{
			WeightPolicy:       0.40,
			WeightSimilarity:   0.30,
			WeightClarity:      0.20,
			WeightRedFlags:     0.10,
			AlignmentThreshold: 0.75,
			ClarityMin:         0.30,
		},
		Store:  StoreConfig{Dir: "triage", DecisionTTL: 7 * 24 * time.Hour},
		Server: ServerConfig{Addr: ":8080", RefreshSchedule: "@every 1h"},
	}
}
