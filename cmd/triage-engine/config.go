// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/triage-engine/internal/corpus"
	"github.com/pdiddy/triage-engine/internal/embed"
	"github.com/pdiddy/triage-engine/internal/embedcache"
	"github.com/pdiddy/triage-engine/internal/policy"
	"github.com/pdiddy/triage-engine/internal/secrets"
	"github.com/pdiddy/triage-engine/internal/tracker"
	"github.com/pdiddy/triage-engine/internal/triage"
	"github.com/pdiddy/triage-engine/pkg/types"
)

// loadConfig merges the viper-backed config file and environment over
// the documented defaults. API keys fall back to the .secrets/ directory
// when neither source sets them.
func loadConfig() types.Config {
	cfg := types.Defaults()

	setString(&cfg.Policy.Path, "policy.path")
	setFloat(&cfg.Policy.HardVetoThreshold, "policy.hard_veto_threshold")

	setInt(&cfg.Normalize.MaxLength, "normalize.max_length")

	setString(&cfg.Embedding.Model, "embedding.model")
	setInt(&cfg.Embedding.Dimension, "embedding.dimension")
	setString(&cfg.Embedding.APIKey, "embedding.api_key")
	setInt(&cfg.Embedding.BatchSize, "embedding.batch_size")
	setDuration(&cfg.Embedding.CacheTTL, "embedding.cache_ttl")
	cfg.Embedding.APIKey = secretDefault(secrets.KeyEmbeddings, cfg.Embedding.APIKey)

	setString(&cfg.Tracker.APIKey, "tracker.api_key")
	setDuration(&cfg.Tracker.CorpusMaxAge, "tracker.corpus_max_age")
	cfg.Tracker.APIKey = secretDefault(secrets.KeyTracker, cfg.Tracker.APIKey)

	setFloat(&cfg.Match.ThresholdMatch, "match.threshold_match")
	setFloat(&cfg.Match.ThresholdDuplicate, "match.threshold_duplicate")
	setFloat(&cfg.Match.ThresholdExact, "match.threshold_exact")
	setInt(&cfg.Match.TopK, "match.top_k")

	setFloat(&cfg.Scoring.WeightPolicy, "scoring.weight_policy")
	setFloat(&cfg.Scoring.WeightSimilarity, "scoring.weight_similarity")
	setFloat(&cfg.Scoring.WeightClarity, "scoring.weight_clarity")
	setFloat(&cfg.Scoring.WeightRedFlags, "scoring.weight_red_flags")
	setFloat(&cfg.Scoring.AlignmentThreshold, "scoring.alignment_threshold")
	setFloat(&cfg.Scoring.ClarityMin, "scoring.clarity_min")

	setString(&cfg.Store.Dir, "store.dir")
	setDuration(&cfg.Store.DecisionTTL, "store.decision_ttl")

	setString(&cfg.Server.Addr, "server.addr")
	setString(&cfg.Server.RefreshSchedule, "server.refresh_schedule")

	return cfg
}

func setString(dst *string, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetString(key)
	}
}

func setInt(dst *int, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetInt(key)
	}
}

func setFloat(dst *float64, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetFloat64(key)
	}
}

func setDuration(dst *time.Duration, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetDuration(key)
	}
}

// runtime bundles the wired pipeline for the evaluate and serve commands.
type runtime struct {
	cache  *embedcache.Cache
	corpus *corpus.Corpus
	audit  *triage.Store
	engine *triage.Engine
}

// buildRuntime wires the full pipeline from configuration. Progress and
// degraded-mode notices go to stderr; stdout stays reserved for command
// output.
func buildRuntime(cfg types.Config) (*runtime, error) {
	pol, err := policy.Load(cfg.Policy.Path, cfg.Policy.HardVetoThreshold)
	if err != nil {
		return nil, err
	}

	provider := embed.NewClient(cfg.Embedding)
	cache, err := embedcache.New(cfg.Store.Dir, provider, cfg.Embedding.CacheTTL, cfg.Embedding.BatchSize)
	if err != nil {
		return nil, err
	}
	cache.Log = os.Stderr

	trk := tracker.NewClient(cfg.Tracker)
	corp, err := corpus.New(cfg.Store.Dir, trk, cache, cfg.Tracker.CorpusMaxAge)
	if err != nil {
		cache.Close()
		return nil, err
	}
	corp.Log = os.Stderr

	audit, err := triage.NewStore(cfg.Store.Dir, cfg.Store.DecisionTTL)
	if err != nil {
		corp.Close()
		cache.Close()
		return nil, err
	}

	engine, err := triage.New(cfg, pol, cache, corp, audit)
	if err != nil {
		audit.Close()
		corp.Close()
		cache.Close()
		return nil, err
	}
	engine.Log = os.Stderr

	return &runtime{
		cache:  cache,
		corpus: corp,
		audit:  audit,
		engine: engine,
	}, nil
}

// Close releases the runtime's stores.
func (r *runtime) Close() {
	r.audit.Close()
	r.corpus.Close()
	r.cache.Close()
}
