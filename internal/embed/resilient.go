package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cerp-labs/codeintel/internal/errs"
)

// cacheSize bounds the number of distinct (model, text) vectors cached
// in memory, avoiding repeated HTTP round-trips when the same chunk
// content is re-embedded across a sync.
const cacheSize = 4096

// WithResilience wraps adapter with an LRU response cache and a circuit
// breaker around its HTTP calls: the breaker opens after repeated
// embedding-backend failures so indexing fails fast into `embed_pending`
// instead of hammering a dead backend.
func WithResilience(adapter Adapter) (Adapter, error) {
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, err
	}
	breaker := errs.NewCircuitBreaker("embed",
		errs.WithMaxFailures(5),
		errs.WithResetTimeout(30*time.Second),
	)
	return &resilientAdapter{Adapter: adapter, cache: cache, breaker: breaker}, nil
}

type resilientAdapter struct {
	Adapter
	cache   *lru.Cache[string, []float32]
	breaker *errs.CircuitBreaker
}

func (a *resilientAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		key := cacheKey(a.ModelID(), text)
		if vec, ok := a.cache.Get(key); ok {
			results[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return results, nil
	}

	var fetched [][]float32
	err := a.breaker.Do(func() error {
		var innerErr error
		fetched, innerErr = a.Adapter.EmbedBatch(ctx, missing)
		return innerErr
	})
	if err != nil {
		return nil, err
	}

	for j, idx := range missingIdx {
		results[idx] = fetched[j]
		a.cache.Add(cacheKey(a.ModelID(), missing[j]), fetched[j])
	}
	return results, nil
}

func (a *resilientAdapter) HealthCheck(ctx context.Context) error {
	return a.breaker.Do(func() error { return a.Adapter.HealthCheck(ctx) })
}

func cacheKey(model, text string) string {
	h := sha256.Sum256([]byte(text))
	return model + ":" + hex.EncodeToString(h[:])
}
