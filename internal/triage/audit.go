// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package triage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/triage-engine/pkg/types"
)

const auditDBFile = "decisions.db"

// DefaultDecisionTTL is how long audit records are kept.
const DefaultDecisionTTL = 7 * 24 * time.Hour

// Store keeps an audit trail of decisions with a retention TTL.
// Records are written once and never updated; replaying an evaluation
// against a recorded decision is the audit use case.
type Store struct {
	db  *sql.DB
	ttl time.Duration
}

// AuditRecord is one persisted decision with its assigned record ID.
type AuditRecord struct {
	ID       string         `json:"id"`
	Decision types.Decision `json:"decision"`
}

// NewStore opens (or creates) the decision store under dir.
func NewStore(dir string, ttl time.Duration) (*Store, error) {
	if ttl <= 0 {
		ttl = DefaultDecisionTTL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", filepath.Join(dir, auditDBFile))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening decision db: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS decisions (
			id         TEXT PRIMARY KEY,
			task_id    TEXT NOT NULL,
			outcome    TEXT NOT NULL,
			payload    TEXT NOT NULL,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS decisions_task_id ON decisions (task_id);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating decision schema: %w", err)
	}
	return &Store{db: db, ttl: ttl}, nil
}

// Close closes the underlying store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record persists one decision and returns the new record's ID.
func (s *Store) Record(ctx context.Context, d types.Decision) (string, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encoding decision: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decisions (id, task_id, outcome, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, d.TaskID, string(d.Outcome), string(payload),
		now.Format(time.RFC3339Nano), now.Add(s.ttl).Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("recording decision for task %s: %w", d.TaskID, err)
	}
	return id, nil
}

// ByTask returns the unexpired decisions recorded for a task, newest
// first.
func (s *Store) ByTask(ctx context.Context, taskID string) ([]AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, payload FROM decisions
		WHERE task_id = ? AND expires_at > ?
		ORDER BY created_at DESC`,
		taskID, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("querying decisions for task %s: %w", taskID, err)
	}
	defer rows.Close()

	var records []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		var payload string
		if err := rows.Scan(&rec.ID, &payload); err != nil {
			return nil, fmt.Errorf("scanning decision row: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &rec.Decision); err != nil {
			return nil, fmt.Errorf("decoding decision %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Recent returns the newest unexpired decisions, up to limit.
func (s *Store) Recent(ctx context.Context, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, payload FROM decisions
		WHERE expires_at > ?
		ORDER BY created_at DESC
		LIMIT ?`,
		time.Now().UTC().Format(time.RFC3339Nano), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent decisions: %w", err)
	}
	defer rows.Close()

	var records []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		var payload string
		if err := rows.Scan(&rec.ID, &payload); err != nil {
			return nil, fmt.Errorf("scanning decision row: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &rec.Decision); err != nil {
			return nil, fmt.Errorf("decoding decision %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Prune deletes expired audit records and reports how many went.
func (s *Store) Prune(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM decisions WHERE expires_at <= ?`,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("pruning decisions: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
