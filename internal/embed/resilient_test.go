package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	calls     int
	failUntil int
	vecs      map[string][]float32
}

func (s *stubAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.calls <= s.failUntil {
		return nil, errors.New("backend unavailable")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.vecs[t]
	}
	return out, nil
}

func (s *stubAdapter) Dimensions() int            { return 2 }
func (s *stubAdapter) ModelID() string            { return "stub-model" }
func (s *stubAdapter) ProviderType() ProviderType { return ProviderLocal }
func (s *stubAdapter) HealthCheck(ctx context.Context) error { return nil }

func TestResilientAdapter_CachesByContentAndModel(t *testing.T) {
	stub := &stubAdapter{vecs: map[string][]float32{"hello": {1, 2}}}
	adapter, err := WithResilience(stub)
	require.NoError(t, err)

	v1, err := adapter.EmbedBatch(context.Background(), []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2}}, v1)
	assert.Equal(t, 1, stub.calls)

	v2, err := adapter.EmbedBatch(context.Background(), []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2}}, v2)
	assert.Equal(t, 1, stub.calls, "second call should be served from cache")
}

func TestResilientAdapter_PartialCacheHit(t *testing.T) {
	stub := &stubAdapter{vecs: map[string][]float32{"a": {1}, "b": {2}}}
	adapter, err := WithResilience(stub)
	require.NoError(t, err)

	_, err = adapter.EmbedBatch(context.Background(), []string{"a"})
	require.NoError(t, err)

	results, err := adapter.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, results)
	assert.Equal(t, 2, stub.calls, "only the uncached text should trigger another backend call")
}

func TestResilientAdapter_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	stub := &stubAdapter{failUntil: 100}
	adapter, err := WithResilience(stub)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := adapter.EmbedBatch(context.Background(), []string{"unique-" + string(rune('a'+i))})
		assert.Error(t, err)
	}

	callsBeforeOpen := stub.calls
	_, err = adapter.EmbedBatch(context.Background(), []string{"another"})
	assert.Error(t, err)
	assert.Equal(t, callsBeforeOpen, stub.calls, "circuit should be open and fail fast without calling the backend")
}
