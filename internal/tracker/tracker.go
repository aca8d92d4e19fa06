// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tracker talks to the issue-tracker API behind a narrow
// interface: listing projects for the corpus, creating issues, and
// linking related ones. Implements: prd004-project-corpus § Tracker
// Collaborator.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pdiddy/triage-engine/internal/httputil"
	"github.com/pdiddy/triage-engine/pkg/types"
)

// ErrUnavailable signals that the tracker could not serve the request
// after the retry budget was spent. Corpus refreshes fall back to the
// stale snapshot; it is never surfaced per-evaluation.
var ErrUnavailable = errors.New("tracker unavailable")

// Tracker is the issue-tracker collaborator.
type Tracker interface {
	ListProjects(ctx context.Context) ([]types.Project, error)
	CreateIssue(ctx context.Context, projectID, title, description string) (string, error)
	LinkIssues(ctx context.Context, sourceID, targetID, relationship string) error
}

// trackerAPIBase is the tracker REST endpoint. Declared as a var so
// tests can substitute an httptest server.
var trackerAPIBase = "https://tracker.mesh-intelligence.dev/api/v1"

// Client calls the tracker REST API.
type Client struct {
	HTTP *http.Client
	Cfg  types.TrackerConfig
}

// NewClient builds a tracker client from configuration.
func NewClient(cfg types.TrackerConfig) *Client {
	return &Client{
		HTTP: &http.Client{Timeout: cfg.Timeout},
		Cfg:  cfg,
	}
}

// Tracker API JSON structures.
type listProjectsResponse struct {
	Projects []apiProject `json:"projects"`
}

type apiProject struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Team        string `json:"team"`
	Status      string `json:"status"`
	UpdatedAt   string `json:"updated_at"`
}

type createIssueRequest struct {
	ProjectID   string `json:"project_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type createIssueResponse struct {
	ID string `json:"id"`
}

type linkIssuesRequest struct {
	SourceID     string `json:"source_id"`
	TargetID     string `json:"target_id"`
	Relationship string `json:"relationship"`
}

// ListProjects fetches every tracked project. Embeddings and content
// hashes are the corpus cache's business; projects come back bare.
func (c *Client) ListProjects(ctx context.Context) ([]types.Project, error) {
	req, err := c.newRequest(ctx, http.MethodGet, trackerAPIBase+"/projects", nil)
	if err != nil {
		return nil, err
	}

	var lr listProjectsResponse
	if err := c.do(req, &lr); err != nil {
		return nil, err
	}

	projects := make([]types.Project, 0, len(lr.Projects))
	for _, p := range lr.Projects {
		proj := types.Project{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Team:        p.Team,
			Status:      p.Status,
		}
		if p.UpdatedAt != "" {
			if t, parseErr := time.Parse(time.RFC3339, p.UpdatedAt); parseErr == nil {
				proj.UpdatedAt = t
			}
		}
		projects = append(projects, proj)
	}
	return projects, nil
}

// CreateIssue opens a new issue under projectID and returns its ID.
func (c *Client) CreateIssue(ctx context.Context, projectID, title, description string) (string, error) {
	body := createIssueRequest{ProjectID: projectID, Title: title, Description: description}
	req, err := c.newRequest(ctx, http.MethodPost, trackerAPIBase+"/issues", body)
	if err != nil {
		return "", err
	}

	var cr createIssueResponse
	if err := c.do(req, &cr); err != nil {
		return "", err
	}
	if cr.ID == "" {
		return "", fmt.Errorf("%w: create issue returned no ID", ErrUnavailable)
	}
	return cr.ID, nil
}

// LinkIssues records a relationship (e.g. "duplicate-of", "related-to")
// between two issues.
func (c *Client) LinkIssues(ctx context.Context, sourceID, targetID, relationship string) error {
	body := linkIssuesRequest{SourceID: sourceID, TargetID: targetID, Relationship: relationship}
	req, err := c.newRequest(ctx, http.MethodPost, trackerAPIBase+"/issues/links", body)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) newRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding tracker request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("creating tracker request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.Cfg.UserAgent)
	if c.Cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.Cfg.APIKey)
	}
	return req, nil
}

// do executes the request with one retry and decodes the response into
// out when non-nil. Transport and HTTP failures wrap ErrUnavailable.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := httputil.DoWithRetry(req.Context(), c.HTTP, req, 1)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: parsing response: %v", ErrUnavailable, err)
	}
	return nil
}
