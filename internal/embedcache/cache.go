// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embedcache is a content-addressed store mapping normalized
// text to embedding vectors, with TTL expiry and batched read-through to
// the provider. Implements: prd003-embedding-cache.
package embedcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/triage-engine/internal/embed"
)

const dbFile = "embeddings.db"

// ErrCacheWrite signals a failed cache persist. The caller already holds
// the computed vector, so evaluations proceed; the miss simply recurs.
var ErrCacheWrite = errors.New("embedding cache write failed")

// Cache stores embedding vectors keyed by Key(model, text). Safe for
// concurrent use: two evaluations missing on the same key may both call
// the provider, and last write wins because the value is a pure function
// of the key.
type Cache struct {
	db        *sql.DB
	provider  embed.Provider
	ttl       time.Duration
	batchSize int

	// Log receives warnings for non-fatal cache write failures.
	Log io.Writer
}

// New opens or creates the embedding cache database in dir. A ttl of
// zero or less defaults to 30 days, batchSize to 100.
func New(dir string, provider embed.Provider, ttl time.Duration, batchSize int) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	c := &Cache{db: db, provider: provider, ttl: ttl, batchSize: batchSize, Log: io.Discard}
	if err := c.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return c, nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) createSchema() error {
	_, err := c.db.Exec(`CREATE TABLE IF NOT EXISTS embeddings (
		content_hash TEXT PRIMARY KEY,
		model TEXT NOT NULL,
		vector TEXT NOT NULL,
		dimension INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		expires_at TEXT NOT NULL
	)`)
	return err
}

// GetOrCompute returns the vector for text, serving unexpired cached
// entries without a provider call and computing-then-storing on miss.
func (c *Cache) GetOrCompute(ctx context.Context, text string, purpose embed.Purpose) ([]float64, error) {
	vectors, err := c.GetOrComputeMany(ctx, []string{text}, purpose)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// GetOrComputeMany returns one vector per input text, preserving input
// order. Cached unexpired entries are served locally; the remainder goes
// to the provider in chunks of at most the configured batch size. A
// provider failure surfaces as-is and leaves previously cached entries
// untouched. Cache write failures are logged and the computed vector is
// still returned.
func (c *Cache) GetOrComputeMany(ctx context.Context, texts []string, purpose embed.Purpose) ([][]float64, error) {
	vectors := make([][]float64, len(texts))

	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		v, err := c.lookup(ctx, Key(c.provider.Model(), text))
		if err != nil {
			return nil, err
		}
		if v != nil {
			vectors[i] = v
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	for start := 0; start < len(missTexts); start += c.batchSize {
		end := min(start+c.batchSize, len(missTexts))

		computed, err := c.provider.Embed(ctx, missTexts[start:end], purpose)
		if err != nil {
			return nil, err
		}

		for j, v := range computed {
			idx := missIdx[start+j]
			vectors[idx] = v
			if err := c.store(ctx, missTexts[start+j], v); err != nil {
				fmt.Fprintf(c.Log, "warning: %v\n", err)
			}
		}
	}

	return vectors, nil
}

// lookup returns the cached vector for hash, or nil on miss or expiry.
func (c *Cache) lookup(ctx context.Context, hash string) ([]float64, error) {
	var vectorJSON, expiresAt string
	err := c.db.QueryRowContext(ctx,
		`SELECT vector, expires_at FROM embeddings WHERE content_hash = ?`, hash,
	).Scan(&vectorJSON, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading embedding cache: %w", err)
	}

	expiry, err := time.Parse(time.RFC3339Nano, expiresAt)
	if err != nil || !expiry.After(time.Now()) {
		return nil, nil
	}

	var vector []float64
	if err := json.Unmarshal([]byte(vectorJSON), &vector); err != nil {
		// A corrupt row reads as a miss; the rewrite repairs it.
		return nil, nil
	}
	return vector, nil
}

// store persists one vector. INSERT OR REPLACE gives last-write-wins
// under concurrent misses on the same key.
func (c *Cache) store(ctx context.Context, text string, vector []float64) error {
	vectorJSON, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("%w: encoding vector: %v", ErrCacheWrite, err)
	}

	now := time.Now().UTC()
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO embeddings (content_hash, model, vector, dimension, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		Key(c.provider.Model(), text), c.provider.Model(), string(vectorJSON), len(vector),
		now.Format(time.RFC3339Nano), now.Add(c.ttl).Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheWrite, err)
	}
	return nil
}

// Stats summarizes cache contents.
type Stats struct {
	Total   int
	Expired int
}

// Stats counts total and expired rows.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if err := c.db.QueryRowContext(ctx, `SELECT count(*) FROM embeddings`).Scan(&s.Total); err != nil {
		return Stats{}, fmt.Errorf("counting cache rows: %w", err)
	}
	if err := c.db.QueryRowContext(ctx,
		`SELECT count(*) FROM embeddings WHERE expires_at <= ?`, now,
	).Scan(&s.Expired); err != nil {
		return Stats{}, fmt.Errorf("counting expired rows: %w", err)
	}
	return s, nil
}

// Prune deletes expired rows and returns the number removed.
func (c *Cache) Prune(ctx context.Context) (int, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM embeddings WHERE expires_at <= ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
