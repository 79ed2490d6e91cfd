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

func TestCloudAdapter_EmbedBatch(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req cloudEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 1024, req.Dimensions)
		_ = json.NewEncoder(w).Encode(cloudEmbedResponse{Embedding: []float32{0.1, 0.2}})
	}))
	defer srv.Close()

	adapter := newCloudAdapter(Config{Provider: ProviderCloud, BaseURL: srv.URL}.Normalize())

	vecs, err := adapter.EmbedBatch(context.Background(), []string{"x", "y", "z"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []float32{0.1, 0.2}, vecs[2])
}

func TestCloudAdapter_EndpointDefaultsToBedrock(t *testing.T) {
	adapter := newCloudAdapter(Config{Provider: ProviderCloud, Region: "eu-west-1", Model: "my-model"}.Normalize())
	assert.Equal(t, "https://bedrock-runtime.eu-west-1.amazonaws.com/model/my-model/invoke", adapter.endpoint())
}

func TestCloudAdapter_HealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(cloudEmbedResponse{Embedding: []float32{0.5}})
	}))
	defer srv.Close()

	adapter := newCloudAdapter(Config{Provider: ProviderCloud, BaseURL: srv.URL}.Normalize())
	require.NoError(t, adapter.HealthCheck(context.Background()))
}

func TestCloudAdapter_EmbedBatchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	adapter := newCloudAdapter(Config{Provider: ProviderCloud, BaseURL: srv.URL}.Normalize())
	_, err := adapter.EmbedBatch(context.Background(), []string{"x"})
	assert.Error(t, err)
}
