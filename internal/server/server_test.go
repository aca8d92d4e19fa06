// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/triage-engine/internal/corpus"
	"github.com/pdiddy/triage-engine/internal/embed"
	"github.com/pdiddy/triage-engine/internal/policy"
	"github.com/pdiddy/triage-engine/internal/triage"
	"github.com/pdiddy/triage-engine/pkg/types"
)

type stubTracker struct {
	projects []types.Project
}

func (s *stubTracker) ListProjects(ctx context.Context) ([]types.Project, error) {
	return s.projects, nil
}

func (s *stubTracker) CreateIssue(ctx context.Context, projectID, title, description string) (string, error) {
	return "issue-1", nil
}

func (s *stubTracker) LinkIssues(ctx context.Context, sourceID, targetID, relationship string) error {
	return nil
}

type stubEmbedder struct{}

func (stubEmbedder) GetOrCompute(ctx context.Context, text string, purpose embed.Purpose) ([]float64, error) {
	return vectorFor(text), nil
}

func (stubEmbedder) GetOrComputeMany(ctx context.Context, texts []string, purpose embed.Purpose) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = vectorFor(t)
	}
	return out, nil
}

// vectorFor makes texts sharing the word "search" near-identical and
// everything else orthogonal to them.
func vectorFor(text string) []float64 {
	if strings.Contains(text, "search") {
		return []float64{1, 0, 0}
	}
	return []float64{0, 0, 1}
}

func testServer(t *testing.T) *Server {
	t.Helper()

	rules := []policy.Rule{
		{Category: "intelligence-features", Signal: policy.SignalKeyword, Value: "search", Polarity: policy.PolarityAdmit, Weight: 0.2},
		{Category: "personal-household", Signal: policy.SignalKeyword, Value: "grocery", Polarity: policy.PolarityReject, Weight: 0.3},
	}
	pol, err := policy.New(rules, []string{"urgent"}, 0.9)
	require.NoError(t, err)

	trk := &stubTracker{projects: []types.Project{
		{ID: "proj-search", Name: "semantic search", Description: "find related work by meaning"},
	}}
	corp, err := corpus.New(t.TempDir(), trk, stubEmbedder{}, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { corp.Close() })

	audit, err := triage.NewStore(t.TempDir(), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { audit.Close() })

	engine, err := triage.New(types.Defaults(), pol, stubEmbedder{}, corp, audit)
	require.NoError(t, err)

	return New(engine, corp, audit, types.Defaults().Server)
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestEvaluateEndpoint(t *testing.T) {
	h := testServer(t).Router()

	w := postJSON(t, h, "/v1/evaluate",
		`{"task_id":"t1","source":"import-a","text":"buy groceries and grocery bags"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var d types.Decision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, "t1", d.TaskID)
	assert.Equal(t, types.OutcomeReject, d.Outcome)
	assert.True(t, d.HasReason(types.ReasonPolicyReject))
}

func TestEvaluateEndpointAssignsTaskID(t *testing.T) {
	h := testServer(t).Router()

	w := postJSON(t, h, "/v1/evaluate", `{"text":"improve stuff"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var d types.Decision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.NotEmpty(t, d.TaskID)
	assert.Equal(t, types.OutcomeClarify, d.Outcome)
}

func TestEvaluateEndpointRejectsUnknownSource(t *testing.T) {
	h := testServer(t).Router()
	w := postJSON(t, h, "/v1/evaluate", `{"source":"carrier-pigeon","text":"anything"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvaluateEndpointRejectsBadJSON(t *testing.T) {
	h := testServer(t).Router()
	w := postJSON(t, h, "/v1/evaluate", `{"text": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvaluateEndpointEmptyTextClarifies(t *testing.T) {
	h := testServer(t).Router()
	w := postJSON(t, h, "/v1/evaluate", `{"task_id":"t2","text":"   "}`)
	require.Equal(t, http.StatusOK, w.Code)

	var d types.Decision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, types.OutcomeClarify, d.Outcome)
	assert.True(t, d.HasReason(types.ReasonEmptyInput))
	assert.NotEmpty(t, d.ClarificationQuestions)
}

func TestHealthReflectsCorpusState(t *testing.T) {
	h := testServer(t).Router()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status, "never-fetched corpus should report degraded")

	// Force a refresh; health flips to ok.
	rw := postJSON(t, h, "/v1/corpus/refresh", "")
	require.Equal(t, http.StatusOK, rw.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Corpus.Projects)
}

func TestDecisionsEndpoint(t *testing.T) {
	h := testServer(t).Router()

	w := postJSON(t, h, "/v1/evaluate", `{"task_id":"t3","text":"implement semantic search for related work"}`)
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/decisions/t3", nil)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	require.Equal(t, http.StatusOK, rw.Code)

	var records []triage.AuditRecord
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "t3", records[0].Decision.TaskID)
	assert.NotEmpty(t, records[0].ID)
}

func TestDecisionsEndpointUnknownTask(t *testing.T) {
	h := testServer(t).Router()
	req := httptest.NewRequest(http.MethodGet, "/v1/decisions/nope", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
