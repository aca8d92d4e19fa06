// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package corpus maintains the in-memory snapshot of tracker projects and
// their embeddings that the decision engine matches tasks against.
// Implements: prd004-project-corpus.
//
// The snapshot is refreshed from the tracker when older than the
// configured max age. A refresh that fails leaves the previous snapshot
// in place; the engine keeps serving stale data and Health reports the
// failure. Projects whose name and description are unchanged keep their
// embedding across refreshes, so a steady-state refresh costs one tracker
// call and zero provider calls.
package corpus

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/triage-engine/internal/embed"
	"github.com/pdiddy/triage-engine/internal/tracker"
	"github.com/pdiddy/triage-engine/pkg/types"
)

const dbFile = "corpus.db"

// Embedder computes embeddings for a batch of texts. Satisfied by
// *embedcache.Cache.
type Embedder interface {
	GetOrComputeMany(ctx context.Context, texts []string, purpose embed.Purpose) ([][]float64, error)
}

// Corpus holds the current project snapshot and refreshes it on demand.
type Corpus struct {
	tracker  tracker.Tracker
	embedder Embedder
	maxAge   time.Duration
	db       *sql.DB

	// Log receives refresh progress lines. Defaults to io.Discard.
	Log io.Writer

	// refreshMu serializes refreshes. A caller that finds it held gets
	// the current snapshot instead of waiting.
	refreshMu sync.Mutex

	mu        sync.RWMutex
	snapshot  []types.Project
	fetchedAt time.Time
	lastErr   error
}

// New opens (or creates) the corpus store under dir and loads the
// persisted snapshot, if any, so a restarted process serves projects
// without waiting for the tracker.
func New(dir string, trk tracker.Tracker, embedder Embedder, maxAge time.Duration) (*Corpus, error) {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating corpus dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", filepath.Join(dir, dbFile))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening corpus db: %w", err)
	}

	c := &Corpus{
		tracker:  trk,
		embedder: embedder,
		maxAge:   maxAge,
		db:       db,
		Log:      io.Discard,
	}
	if err := c.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := c.load(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the underlying store.
func (c *Corpus) Close() error {
	return c.db.Close()
}

func (c *Corpus) createSchema() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS projects (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			team         TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT '',
			embedding    TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			updated_at   TEXT NOT NULL,
			cached_at    TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating corpus schema: %w", err)
	}
	return nil
}

// Projects returns the current snapshot, refreshing it first when it is
// older than the max age or when force is set. If a refresh fails or one
// is already in flight, the previous snapshot is returned as is; callers
// must not mutate it.
func (c *Corpus) Projects(ctx context.Context, force bool) ([]types.Project, error) {
	c.mu.RLock()
	snapshot, fetchedAt := c.snapshot, c.fetchedAt
	c.mu.RUnlock()

	fresh := !fetchedAt.IsZero() && time.Since(fetchedAt) < c.maxAge
	if fresh && !force {
		return snapshot, nil
	}

	if !c.refreshMu.TryLock() {
		// Refresh in flight elsewhere; serve what we have.
		return snapshot, nil
	}
	defer c.refreshMu.Unlock()

	if err := c.refresh(ctx); err != nil {
		c.mu.Lock()
		c.lastErr = err
		stale := c.snapshot
		c.mu.Unlock()

		fmt.Fprintf(c.Log, "corpus refresh failed, serving %d stale projects: %v\n", len(stale), err)
		if len(stale) == 0 {
			return nil, fmt.Errorf("refreshing empty corpus: %w", err)
		}
		return stale, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot, nil
}

// refresh fetches the project list, re-embeds changed projects, and swaps
// the snapshot. The snapshot is only replaced after every step succeeds.
func (c *Corpus) refresh(ctx context.Context) error {
	listed, err := c.tracker.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("listing projects: %w", err)
	}

	c.mu.RLock()
	previous := make(map[string]types.Project, len(c.snapshot))
	for _, p := range c.snapshot {
		previous[p.ID] = p
	}
	c.mu.RUnlock()

	now := time.Now().UTC()
	next := make([]types.Project, 0, len(listed))
	var missTexts []string
	var missIdx []int
	for _, p := range listed {
		p.ContentHash = contentHash(p)
		if prev, ok := previous[p.ID]; ok && prev.ContentHash == p.ContentHash && len(prev.Embedding) > 0 {
			p.Embedding = prev.Embedding
			p.CachedAt = prev.CachedAt
		} else {
			missTexts = append(missTexts, p.EmbeddingText())
			missIdx = append(missIdx, len(next))
			p.CachedAt = now
		}
		next = append(next, p)
	}

	if len(missTexts) > 0 {
		vectors, err := c.embedder.GetOrComputeMany(ctx, missTexts, embed.PurposeDocument)
		if err != nil {
			return fmt.Errorf("embedding %d projects: %w", len(missTexts), err)
		}
		for i, idx := range missIdx {
			next[idx].Embedding = vectors[i]
		}
	}

	c.mu.Lock()
	c.snapshot = next
	c.fetchedAt = now
	c.lastErr = nil
	c.mu.Unlock()

	fmt.Fprintf(c.Log, "corpus refreshed: %d projects, %d re-embedded\n", len(next), len(missTexts))

	if err := c.persist(ctx, next, now); err != nil {
		// Persistence is best effort; the in-memory snapshot already
		// serves requests.
		fmt.Fprintf(c.Log, "persisting corpus snapshot: %v\n", err)
	}
	return nil
}

// Health reports the snapshot state for the health endpoint.
type Health struct {
	Projects  int       `json:"projects"`
	FetchedAt time.Time `json:"fetched_at"`
	Stale     bool      `json:"stale"`
	LastError string    `json:"last_error,omitempty"`
}

// Health returns the current snapshot state. Stale is set when the
// snapshot is older than the max age, including when it has never been
// fetched.
func (c *Corpus) Health() Health {
	c.mu.RLock()
	defer c.mu.RUnlock()

	h := Health{
		Projects:  len(c.snapshot),
		FetchedAt: c.fetchedAt,
		Stale:     c.fetchedAt.IsZero() || time.Since(c.fetchedAt) >= c.maxAge,
	}
	if c.lastErr != nil {
		h.LastError = c.lastErr.Error()
	}
	return h
}

func contentHash(p types.Project) string {
	sum := sha256.Sum256([]byte(p.EmbeddingText()))
	return hex.EncodeToString(sum[:])
}

func (c *Corpus) persist(ctx context.Context, projects []types.Project, fetchedAt time.Time) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM projects`); err != nil {
		return err
	}
	for _, p := range projects {
		vector, err := json.Marshal(p.Embedding)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			INSERT INTO projects
				(id, name, description, team, status, embedding, content_hash, updated_at, cached_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.Description, p.Team, p.Status, string(vector),
			p.ContentHash, p.UpdatedAt.Format(time.RFC3339Nano), p.CachedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}
	}
	_, err = tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('fetched_at', ?)`,
		fetchedAt.Format(time.RFC3339Nano))
	if err != nil {
		return err
	}
	return tx.Commit()
}

// load restores the persisted snapshot into memory. A corrupt row aborts
// the load; a missing or empty store is not an error.
func (c *Corpus) load() error {
	rows, err := c.db.Query(`
		SELECT id, name, description, team, status, embedding, content_hash, updated_at, cached_at
		FROM projects`)
	if err != nil {
		return fmt.Errorf("loading corpus snapshot: %w", err)
	}
	defer rows.Close()

	var snapshot []types.Project
	for rows.Next() {
		var p types.Project
		var vector, updatedAt, cachedAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Team, &p.Status,
			&vector, &p.ContentHash, &updatedAt, &cachedAt); err != nil {
			return fmt.Errorf("scanning corpus row: %w", err)
		}
		if err := json.Unmarshal([]byte(vector), &p.Embedding); err != nil {
			return fmt.Errorf("decoding embedding for project %s: %w", p.ID, err)
		}
		if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			p.UpdatedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, cachedAt); err == nil {
			p.CachedAt = t
		}
		snapshot = append(snapshot, p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("loading corpus snapshot: %w", err)
	}

	var fetchedAt time.Time
	var raw string
	err = c.db.QueryRow(`SELECT value FROM meta WHERE key = 'fetched_at'`).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return fmt.Errorf("loading corpus meta: %w", err)
	default:
		if t, perr := time.Parse(time.RFC3339Nano, raw); perr == nil {
			fetchedAt = t
		}
	}

	c.mu.Lock()
	c.snapshot = snapshot
	c.fetchedAt = fetchedAt
	c.mu.Unlock()
	return nil
}
