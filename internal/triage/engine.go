// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package triage orchestrates normalization, policy filtering, similarity
// matching, duplicate detection, and alignment scoring into a single
// admit/reject/merge/clarify decision per task.
// Implements: prd001-triage-core § Decision Engine.
package triage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/triage-engine/internal/embed"
	"github.com/pdiddy/triage-engine/internal/match"
	"github.com/pdiddy/triage-engine/internal/normalize"
	"github.com/pdiddy/triage-engine/internal/policy"
	"github.com/pdiddy/triage-engine/internal/score"
	"github.com/pdiddy/triage-engine/pkg/types"
)

// Embedder computes one embedding for a task text. Satisfied by
// *embedcache.Cache.
type Embedder interface {
	GetOrCompute(ctx context.Context, text string, purpose embed.Purpose) ([]float64, error)
}

// ProjectSource serves the current project corpus snapshot. Satisfied by
// *corpus.Corpus.
type ProjectSource interface {
	Projects(ctx context.Context, force bool) ([]types.Project, error)
}

// Engine evaluates tasks against the policy and the project corpus.
// Evaluations are independent and safe to run concurrently; the engine
// itself holds no per-evaluation state.
type Engine struct {
	cfg      types.Config
	policy   *policy.Policy
	embedder Embedder
	projects ProjectSource
	audit    *Store

	// Log receives evaluation progress and degraded-mode notices.
	// Defaults to io.Discard.
	Log io.Writer
}

// New builds an Engine. The scoring weights are validated here: a policy
// or weight misconfiguration is fatal at startup, never discovered
// mid-evaluation. The audit store may be nil, in which case decisions
// are not recorded.
func New(cfg types.Config, pol *policy.Policy, embedder Embedder, projects ProjectSource, audit *Store) (*Engine, error) {
	if err := score.ValidateWeights(cfg.Scoring); err != nil {
		return nil, err
	}
	if pol == nil {
		return nil, errors.New("triage: nil policy")
	}
	return &Engine{
		cfg:      cfg,
		policy:   pol,
		embedder: embedder,
		projects: projects,
		audit:    audit,
		Log:      io.Discard,
	}, nil
}

// Evaluate runs one task through the pipeline and returns its decision.
//
// The stages run strictly in order: normalize, policy check, embed,
// match, score, decide. A policy hard veto ends the evaluation before
// any embedding call is made. Empty input and embedding-provider
// failures produce clarify decisions instead of errors; only internal
// faults (a broken store, a cancelled context) surface as errors.
func (e *Engine) Evaluate(ctx context.Context, task types.Task) (types.Decision, error) {
	text, err := normalize.Normalize(task.RawText, e.cfg.Normalize.MaxLength)
	if err != nil {
		if errors.Is(err, normalize.ErrEmptyInput) {
			return e.finish(ctx, e.clarifyDecision(task, types.ReasonEmptyInput))
		}
		return types.Decision{}, err
	}
	task.NormalizedText = text

	verdict := e.policy.Classify(text)
	if verdict.HardVeto {
		d := types.Decision{
			TaskID:      task.ID,
			Outcome:     types.OutcomeReject,
			Confidence:  1,
			ReasonCodes: []types.ReasonCode{types.ReasonPolicyReject, types.ReasonHardVeto},
			CreatedAt:   time.Now().UTC(),
		}
		return e.finish(ctx, d)
	}

	vector, err := e.embedder.GetOrCompute(ctx, text, embed.PurposeQuery)
	if err != nil {
		if errors.Is(err, embed.ErrProvider) {
			fmt.Fprintf(e.Log, "task %s: embedding unavailable, deciding clarify: %v\n", task.ID, err)
			return e.finish(ctx, e.clarifyDecision(task, types.ReasonProviderUnavailable))
		}
		return types.Decision{}, err
	}

	projects, err := e.projects.Projects(ctx, false)
	if err != nil {
		// A dead tracker with no snapshot degrades matching, it does not
		// fail the evaluation.
		fmt.Fprintf(e.Log, "task %s: corpus unavailable, matching against nothing: %v\n", task.ID, err)
		projects = nil
	}

	matches := match.Rank(vector, projects, e.cfg.Match)
	dup := match.Detect(matches, e.cfg.Match)
	best := match.Best(vector, projects)

	clarity := score.Clarity(text)
	density := e.policy.RedFlagDensity(text)
	alignment := score.Alignment(e.cfg.Scoring, verdict.Score, best, clarity, density)

	d := types.Decision{
		TaskID:         task.ID,
		AlignmentScore: alignment,
		Matches:        matches,
		Tags:           verdict.Tags,
		CreatedAt:      time.Now().UTC(),
	}

	switch {
	case verdict.Category == policy.CategoryReject:
		d.Outcome = types.OutcomeReject
		d.Confidence = clamp01(1 - verdict.Score)
		d.AlignmentScore = 0
		d.ReasonCodes = []types.ReasonCode{types.ReasonPolicyReject}

	case dup.IsDuplicate:
		d.Outcome = types.OutcomeMerge
		d.Confidence = e.mergeConfidence(text, dup, projects)
		d.MergeTargets = dup.Targets
		d.ReasonCodes = []types.ReasonCode{types.ReasonDuplicateMatch}
		if dup.Exact {
			d.ReasonCodes = append(d.ReasonCodes, types.ReasonExactMatch)
		}

	case clarity < e.clarityMin():
		d.Outcome = types.OutcomeClarify
		d.Confidence = alignment
		d.ReasonCodes = []types.ReasonCode{types.ReasonLowClarity}
		d.ClarificationQuestions = Questions(d.ReasonCodes)

	case alignment >= e.alignmentThreshold():
		d.Outcome = types.OutcomeAdmit
		d.Confidence = alignment
		d.ReasonCodes = []types.ReasonCode{types.ReasonAlignmentAdmit}

	default:
		d.Outcome = types.OutcomeClarify
		d.Confidence = alignment
		d.ReasonCodes = []types.ReasonCode{types.ReasonAlignmentLow}
		d.ClarificationQuestions = Questions(d.ReasonCodes)
	}

	return e.finish(ctx, d)
}

// mergeConfidence blends the top match's vector similarity with the
// keyword overlap between the task text and that project's own text.
// Overlap confirms a semantic match with a lexical one; when the project
// text is unavailable the similarity stands alone.
func (e *Engine) mergeConfidence(text string, dup match.DuplicateVerdict, projects []types.Project) float64 {
	if len(dup.Targets) == 0 {
		return dup.Confidence
	}
	for _, p := range projects {
		if p.ID == dup.Targets[0] {
			overlap := match.KeywordOverlap(text, p.EmbeddingText())
			return match.BlendConfidence(dup.Confidence, overlap)
		}
	}
	return dup.Confidence
}

func (e *Engine) clarifyDecision(task types.Task, reason types.ReasonCode) types.Decision {
	d := types.Decision{
		TaskID:      task.ID,
		Outcome:     types.OutcomeClarify,
		ReasonCodes: []types.ReasonCode{reason},
		CreatedAt:   time.Now().UTC(),
	}
	d.ClarificationQuestions = Questions(d.ReasonCodes)
	return d
}

// finish records the decision in the audit store. A failed write is
// logged and the decision still returned: auditing never costs an
// evaluation.
func (e *Engine) finish(ctx context.Context, d types.Decision) (types.Decision, error) {
	if e.audit == nil {
		return d, nil
	}
	if _, err := e.audit.Record(ctx, d); err != nil {
		fmt.Fprintf(e.Log, "task %s: recording decision: %v\n", d.TaskID, err)
	}
	return d, nil
}

func (e *Engine) clarityMin() float64 {
	if e.cfg.Scoring.ClarityMin > 0 {
		return e.cfg.Scoring.ClarityMin
	}
	return 0.30
}

func (e *Engine) alignmentThreshold() float64 {
	if e.cfg.Scoring.AlignmentThreshold > 0 {
		return e.cfg.Scoring.AlignmentThreshold
	}
	return 0.75
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
