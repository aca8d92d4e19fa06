// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Outcome is the four-way triage result for a task.
type Outcome string

const (
	// OutcomeAdmit accepts the task as new, in-scope work.
	OutcomeAdmit Outcome = "admit"

	// OutcomeReject discards the task as out-of-scope.
	OutcomeReject Outcome = "reject"

	// OutcomeMerge folds the task into one or more existing projects.
	OutcomeMerge Outcome = "merge"

	// OutcomeClarify returns the task for a better description.
	OutcomeClarify Outcome = "clarify"
)

// ReasonCode identifies which decision rule fired and which signals
// contributed, enabling deterministic replay of a decision.
type ReasonCode string

const (
	ReasonPolicyReject        ReasonCode = "policy-reject"
	ReasonHardVeto            ReasonCode = "hard-veto"
	ReasonDuplicateMatch      ReasonCode = "duplicate-match"
	ReasonExactMatch          ReasonCode = "exact-match"
	ReasonLowClarity          ReasonCode = "low-clarity"
	ReasonEmptyInput          ReasonCode = "empty-input"
	ReasonProviderUnavailable ReasonCode = "provider-unavailable"
	ReasonAlignmentAdmit      ReasonCode = "alignment-admit"
	ReasonAlignmentLow        ReasonCode = "alignment-low"
)

// MatchResult is one ranked nearest-neighbor between a task and a project.
// Produced per evaluation and carried on the Decision; never persisted on
// its own. Per prd005-similarity.
type MatchResult struct {
	// ProjectID identifies the matched project.
	ProjectID string `json:"project_id" yaml:"project_id"`

	// Similarity is the cosine similarity remapped to [0,1].
	Similarity float64 `json:"similarity" yaml:"similarity"`

	// Rank is the 1-based position after sorting, 1 being the best match.
	Rank int `json:"rank" yaml:"rank"`
}

// Decision is the engine's verdict for one task evaluation. The engine
// returns it to the caller and records a copy in the audit store; it has
// no further lifecycle responsibility.
type Decision struct {
	// TaskID is the evaluated task's identifier.
	TaskID string `json:"task_id" yaml:"task_id"`

	// Outcome is the four-way verdict.
	Outcome Outcome `json:"outcome" yaml:"outcome"`

	// Confidence is the engine's confidence in the outcome, in [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// AlignmentScore is the weighted alignment scalar in [0,1]. Zero for
	// policy rejections.
	AlignmentScore float64 `json:"alignment_score" yaml:"alignment_score"`

	// Matches holds the top-ranked similar projects, best first.
	Matches []MatchResult `json:"matches,omitempty" yaml:"matches,omitempty"`

	// ReasonCodes records which rule fired and which signals contributed.
	ReasonCodes []ReasonCode `json:"reason_codes" yaml:"reason_codes"`

	// MergeTargets lists project IDs at or above the duplicate threshold,
	// set only for merge outcomes.
	MergeTargets []string `json:"merge_targets,omitempty" yaml:"merge_targets,omitempty"`

	// Tags are the categories of matched admit policy rules.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// ClarificationQuestions are template questions for clarify outcomes.
	ClarificationQuestions []string `json:"clarification_questions,omitempty" yaml:"clarification_questions,omitempty"`

	// CreatedAt is the evaluation timestamp.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// HasReason reports whether code is among the decision's reason codes.
func (d Decision) HasReason(code ReasonCode) bool {
	for _, c := range d.ReasonCodes {
		if c == code {
			return true
		}
	}
	return false
}
