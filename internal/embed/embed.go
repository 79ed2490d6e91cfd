// Package embed implements the embedding adapter contract of spec §4.3:
// embed_batch(texts) -> [[f32]], against two backends (local inference,
// cloud model), wrapped with an LRU response cache and a circuit breaker.
package embed

import (
	"context"
	"fmt"
	"time"
)

// ProviderType names a backend kind.
type ProviderType string

const (
	ProviderLocal ProviderType = "local"
	ProviderCloud ProviderType = "cloud"
)

// Config selects and configures a backend. Defaults: local inference,
// nomic-embed-text, 768 dimensions; when cloud is chosen with zero-value
// Model/Dimensions, substitute the cloud-native defaults.
type Config struct {
	Provider   ProviderType
	BaseURL    string
	Model      string
	Dimensions int
	Region     string
	Profile    string
}

const (
	defaultLocalModel   = "nomic-embed-text"
	defaultLocalDims    = 768
	defaultCloudModel   = "amazon.titan-embed-text-v2:0"
	defaultCloudDims    = 1024
	defaultLocalBaseURL = "http://localhost:11434"
)

// Normalize fills in defaults per spec §4.3.
func (c Config) Normalize() Config {
	if c.Provider == "" {
		c.Provider = ProviderLocal
	}
	switch c.Provider {
	case ProviderLocal:
		if c.BaseURL == "" {
			c.BaseURL = defaultLocalBaseURL
		}
		if c.Model == "" {
			c.Model = defaultLocalModel
		}
		if c.Dimensions == 0 {
			c.Dimensions = defaultLocalDims
		}
	case ProviderCloud:
		if c.Model == "" {
			c.Model = defaultCloudModel
		}
		if c.Dimensions == 0 {
			c.Dimensions = defaultCloudDims
		}
	}
	return c
}

// Adapter is the embedding adapter contract: safe to call concurrently
// from multiple tasks, per spec §4.2.
type Adapter interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelID() string
	ProviderType() ProviderType
	HealthCheck(ctx context.Context) error
}

// healthCheckTimeout is the hard deadline spec §4.3/§5 places on the
// health check; embedding calls themselves have no explicit timeout.
const healthCheckTimeout = 2 * time.Second

// New constructs the Adapter for cfg's provider.
func New(cfg Config) (Adapter, error) {
	cfg = cfg.Normalize()
	switch cfg.Provider {
	case ProviderLocal:
		return newLocalAdapter(cfg), nil
	case ProviderCloud:
		return newCloudAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("embed: unknown provider %q", cfg.Provider)
	}
}
