// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Project is a tracked project from the issue tracker, enriched with the
// embedding of its name and description. Owned by the corpus cache; the
// decision engine treats it as read-only. Per prd004-project-corpus.
type Project struct {
	// ID is the tracker's project identifier.
	ID string `json:"id" yaml:"id"`

	// Name is the project name.
	Name string `json:"name" yaml:"name"`

	// Description is the project description, possibly empty.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Team is the owning team name.
	Team string `json:"team,omitempty" yaml:"team,omitempty"`

	// Status is the tracker-side project state (e.g. "active", "paused").
	Status string `json:"status,omitempty" yaml:"status,omitempty"`

	// Embedding is the fixed-dimension vector for Name and Description,
	// computed with document purpose.
	Embedding []float64 `json:"embedding,omitempty" yaml:"embedding,omitempty"`

	// ContentHash is the hash of the embedded text. The corpus cache
	// compares it across refreshes to skip re-embedding unchanged projects.
	ContentHash string `json:"content_hash,omitempty" yaml:"content_hash,omitempty"`

	// UpdatedAt is the tracker-side last-modified timestamp.
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`

	// CachedAt records when this record entered the corpus snapshot.
	// It breaks similarity ties: newer projects win.
	CachedAt time.Time `json:"cached_at,omitempty" yaml:"cached_at,omitempty"`
}

// EmbeddingText returns the text the corpus embeds for this project:
// the name, or "name: description" when a description exists.
func (p Project) EmbeddingText() string {
	if p.Description == "" {
		return p.Name
	}
	return p.Name + ": " + p.Description
}
