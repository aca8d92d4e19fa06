// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/triage-engine/internal/httputil"
	"github.com/pdiddy/triage-engine/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = 1 * time.Millisecond
}

func testConfig() types.EmbeddingConfig {
	return types.EmbeddingConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "triage-engine/test"},
		Model:      "text-embedding-004",
		Dimension:  3,
		APIKey:     "test-key",
		BatchSize:  100,
	}
}

// fakeProviderServer answers every instance with a fixed 3-dim vector.
func fakeProviderServer(t *testing.T, capture *embedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if capture != nil {
			*capture = req
		}

		resp := map[string]any{"predictions": []any{}}
		preds := make([]any, len(req.Instances))
		for i := range req.Instances {
			preds[i] = map[string]any{"embeddings": map[string]any{"values": []float64{0.1, 0.2, 0.3}}}
		}
		resp["predictions"] = preds
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestEmbed(t *testing.T) {
	var captured embedRequest
	ts := fakeProviderServer(t, &captured)
	defer ts.Close()

	old := embedAPIBase
	embedAPIBase = ts.URL
	defer func() { embedAPIBase = old }()

	c := NewClient(testConfig())
	vectors, err := c.Embed(context.Background(), []string{"alpha", "beta"}, PurposeQuery)
	require.NoError(t, err)

	require.Len(t, vectors, 2)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vectors[0])

	require.Len(t, captured.Instances, 2)
	assert.Equal(t, "alpha", captured.Instances[0].Content)
	assert.Equal(t, "RETRIEVAL_QUERY", captured.Instances[0].TaskType)
}

func TestEmbedPurposeMapping(t *testing.T) {
	tests := []struct {
		purpose  Purpose
		taskType string
	}{
		{PurposeSimilarity, "SEMANTIC_SIMILARITY"},
		{PurposeDocument, "RETRIEVAL_DOCUMENT"},
		{PurposeQuery, "RETRIEVAL_QUERY"},
	}

	for _, tt := range tests {
		t.Run(string(tt.purpose), func(t *testing.T) {
			var captured embedRequest
			ts := fakeProviderServer(t, &captured)
			defer ts.Close()

			old := embedAPIBase
			embedAPIBase = ts.URL
			defer func() { embedAPIBase = old }()

			c := NewClient(testConfig())
			_, err := c.Embed(context.Background(), []string{"x"}, tt.purpose)
			require.NoError(t, err)
			assert.Equal(t, tt.taskType, captured.Instances[0].TaskType)
		})
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	c := NewClient(testConfig())
	vectors, err := c.Embed(context.Background(), nil, PurposeQuery)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestEmbedUnknownPurpose(t *testing.T) {
	c := NewClient(testConfig())
	_, err := c.Embed(context.Background(), []string{"x"}, Purpose("ranking"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrProvider)
}

func TestEmbedServerErrorWrapsErrProvider(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	old := embedAPIBase
	embedAPIBase = ts.URL
	defer func() { embedAPIBase = old }()

	c := NewClient(testConfig())
	_, err := c.Embed(context.Background(), []string{"x"}, PurposeQuery)
	assert.ErrorIs(t, err, ErrProvider)
	// 1 initial + 1 retry.
	assert.Equal(t, 2, calls)
}

func TestEmbedDimensionMismatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"predictions": []any{
				map[string]any{"embeddings": map[string]any{"values": []float64{1, 2}}},
			},
		})
	}))
	defer ts.Close()

	old := embedAPIBase
	embedAPIBase = ts.URL
	defer func() { embedAPIBase = old }()

	c := NewClient(testConfig())
	_, err := c.Embed(context.Background(), []string{"x"}, PurposeQuery)
	assert.ErrorIs(t, err, ErrProvider)
}

func TestEmbedCountMismatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"predictions": []any{}})
	}))
	defer ts.Close()

	old := embedAPIBase
	embedAPIBase = ts.URL
	defer func() { embedAPIBase = old }()

	c := NewClient(testConfig())
	_, err := c.Embed(context.Background(), []string{"x"}, PurposeQuery)
	assert.ErrorIs(t, err, ErrProvider)
}
