package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalAdapter_EmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req localEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a", "b"}, req.Input)
		_ = json.NewEncoder(w).Encode(localEmbedResponse{
			Embeddings: [][]float32{{1, 2}, {3, 4}},
		})
	}))
	defer srv.Close()

	adapter := newLocalAdapter(Config{BaseURL: srv.URL, Model: "nomic-embed-text", Dimensions: 2}.Normalize())

	vecs, err := adapter.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 2}, vecs[0])
	assert.Equal(t, []float32{3, 4}, vecs[1])
}

func TestLocalAdapter_EmbedBatchCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(localEmbedResponse{Embeddings: [][]float32{{1, 2}}})
	}))
	defer srv.Close()

	adapter := newLocalAdapter(Config{BaseURL: srv.URL}.Normalize())
	_, err := adapter.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestLocalAdapter_HealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	adapter := newLocalAdapter(Config{BaseURL: srv.URL}.Normalize())
	require.NoError(t, adapter.HealthCheck(context.Background()))
}

func TestLocalAdapter_HealthCheckFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	adapter := newLocalAdapter(Config{BaseURL: srv.URL}.Normalize())
	assert.Error(t, adapter.HealthCheck(context.Background()))
}
