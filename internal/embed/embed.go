// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embed abstracts the embedding provider behind a narrow
// interface and implements the hosted text-embedding API client.
// Implements: prd003-embedding-cache § Provider Collaborator.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/pdiddy/triage-engine/internal/httputil"
	"github.com/pdiddy/triage-engine/pkg/types"
)

// Purpose selects the embedding task type. Tasks embed as queries,
// corpus projects as documents.
type Purpose string

const (
	PurposeSimilarity Purpose = "similarity"
	PurposeDocument   Purpose = "document"
	PurposeQuery      Purpose = "query"
)

// ErrProvider signals that the embedding provider could not serve the
// request after the retry budget was spent. The decision engine maps it
// to a clarify outcome with a provider-unavailable reason code.
var ErrProvider = errors.New("embedding provider unavailable")

// Provider produces fixed-dimension vectors for batches of texts.
type Provider interface {
	Embed(ctx context.Context, texts []string, purpose Purpose) ([][]float64, error)
	Model() string
	Dimension() int
}

// embedAPIBase is the embedding prediction endpoint, completed with the
// model identifier. Declared as a var so tests can substitute an
// httptest server.
var embedAPIBase = "https://us-central1-aiplatform.googleapis.com/v1/publishers/google/models"

// taskTypes maps a Purpose onto the provider's task-type vocabulary.
var taskTypes = map[Purpose]string{
	PurposeSimilarity: "SEMANTIC_SIMILARITY",
	PurposeDocument:   "RETRIEVAL_DOCUMENT",
	PurposeQuery:      "RETRIEVAL_QUERY",
}

// Client calls the hosted embedding API.
type Client struct {
	HTTP *http.Client
	Cfg  types.EmbeddingConfig
}

// NewClient builds a provider client from configuration. The HTTP client
// carries the configured request timeout.
func NewClient(cfg types.EmbeddingConfig) *Client {
	return &Client{
		HTTP: &http.Client{Timeout: cfg.Timeout},
		Cfg:  cfg,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.Cfg.Model }

// Dimension returns the configured vector length.
func (c *Client) Dimension() int { return c.Cfg.Dimension }

// API JSON structures.
type embedRequest struct {
	Instances []embedInstance `json:"instances"`
}

type embedInstance struct {
	Content  string `json:"content"`
	TaskType string `json:"task_type"`
}

type embedResponse struct {
	Predictions []struct {
		Embeddings struct {
			Values []float64 `json:"values"`
		} `json:"embeddings"`
	} `json:"predictions"`
}

// Embed requests one vector per input text in a single call. Callers
// batch: the cache layer never passes more than the configured batch
// size. Transport failures, HTTP errors, and malformed responses all
// wrap ErrProvider; one retry with backoff happens inside DoWithRetry.
func (c *Client) Embed(ctx context.Context, texts []string, purpose Purpose) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	taskType, ok := taskTypes[purpose]
	if !ok {
		return nil, fmt.Errorf("unknown embedding purpose %q", purpose)
	}

	reqBody := embedRequest{Instances: make([]embedInstance, len(texts))}
	for i, text := range texts {
		reqBody.Instances[i] = embedInstance{Content: text, TaskType: taskType}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding embed request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:predict", embedAPIBase, c.Cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.Cfg.UserAgent)
	if c.Cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.Cfg.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, c.HTTP, req, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrProvider, resp.StatusCode)
	}

	var er embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("%w: parsing response: %v", ErrProvider, err)
	}

	if len(er.Predictions) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrProvider, len(er.Predictions), len(texts))
	}

	vectors := make([][]float64, len(texts))
	for i, p := range er.Predictions {
		if c.Cfg.Dimension > 0 && len(p.Embeddings.Values) != c.Cfg.Dimension {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d",
				ErrProvider, i, len(p.Embeddings.Values), c.Cfg.Dimension)
		}
		vectors[i] = p.Embeddings.Values
	}

	return vectors, nil
}
