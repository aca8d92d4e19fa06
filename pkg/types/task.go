// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the triage engine.
// Implements: prd001-triage-core (Task, Decision, MatchResult);
//
//	prd004-project-corpus (Project);
//	configuration surface (Config and per-stage sections).
//
// See docs/ARCHITECTURE § Data Structures.
package types

// TaskSource identifies the origin system of an incoming work item.
type TaskSource string

const (
	SourceTracker TaskSource = "tracker-native"
	SourceImportA TaskSource = "import-a"
	SourceImportB TaskSource = "import-b"
	SourceImportC TaskSource = "import-c"
)

// ValidSource reports whether s is a recognized origin system.
func ValidSource(s TaskSource) bool {
	switch s {
	case SourceTracker, SourceImportA, SourceImportB, SourceImportC:
		return true
	}
	return false
}

// Task is an incoming work item to be triaged. Immutable once scored;
// the engine persists only the resulting Decision, never the Task.
type Task struct {
	// ID is the identifier assigned by the origin system.
	ID string `json:"id" yaml:"id"`

	// Source identifies the origin system.
	Source TaskSource `json:"source" yaml:"source"`

	// RawText is the task title and description as received.
	RawText string `json:"raw_text" yaml:"raw_text"`

	// NormalizedText is set by the engine after normalization.
	NormalizedText string `json:"normalized_text,omitempty" yaml:"normalized_text,omitempty"`

	// Metadata carries free-form key/value pairs from the origin system.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}
