// Package config implements codeintel's layered configuration: hardcoded
// defaults, then a user config file, then a project config file, then
// environment variables, each layer overriding only the fields it sets.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EmbeddingConfig is the provider block from spec.md §4.3.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	BaseURL    string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Model      string `yaml:"model,omitempty" json:"model,omitempty"`
	Dimensions int    `yaml:"dimensions,omitempty" json:"dimensions,omitempty"`
	Region     string `yaml:"region,omitempty" json:"region,omitempty"`
	Profile    string `yaml:"profile,omitempty" json:"profile,omitempty"`
}

// PerformanceConfig tunes the indexer's batching and concurrency.
type PerformanceConfig struct {
	EmbedBatchSize   int `yaml:"embed_batch_size" json:"embed_batch_size"`
	IndexConcurrency int `yaml:"index_concurrency" json:"index_concurrency"`
	SQLiteCacheMB    int `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
}

// LoggingConfig drives internal/logging.Config construction.
type LoggingConfig struct {
	Level         string `yaml:"level" json:"level"`
	MaxSizeMB     int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles      int    `yaml:"max_files" json:"max_files"`
	WriteToStderr bool   `yaml:"write_to_stderr" json:"write_to_stderr"`
}

// CircuitBreakerConfig tunes the embedding adapter's resilience decorator.
type CircuitBreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" json:"failure_threshold"`
	CooldownSeconds  int `yaml:"cooldown_seconds" json:"cooldown_seconds"`
}

// Config is the layered configuration for both services.
type Config struct {
	DataDir        string               `yaml:"data_dir" json:"data_dir"`
	Embedding      EmbeddingConfig      `yaml:"embedding" json:"embedding"`
	Performance    PerformanceConfig    `yaml:"performance" json:"performance"`
	Logging        LoggingConfig        `yaml:"logging" json:"logging"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker"`
}

// NewConfig returns the hardcoded defaults, the base of the layering chain.
func NewConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DataDir: filepath.Join(home, ".codeintel"),
		Embedding: EmbeddingConfig{
			Provider: "local",
		},
		Performance: PerformanceConfig{
			EmbedBatchSize:   32,
			IndexConcurrency: 4,
			SQLiteCacheMB:    64,
		},
		Logging: LoggingConfig{
			Level:         "info",
			MaxSizeMB:     10,
			MaxFiles:      5,
			WriteToStderr: true,
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 5,
			CooldownSeconds:  30,
		},
	}
}

// Load builds a Config by layering, in order: hardcoded defaults, the user
// config file (~/.config/codeintel/config.yaml), the project config file
// (.codeintel.yaml or .codeintel.yml in dir), then CODEINTEL_* environment
// variables. Each layer only overrides the fields it explicitly sets.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath, err := userConfigPath(); err == nil {
		if err := mergeFile(cfg, userPath); err != nil {
			return nil, fmt.Errorf("loading user config: %w", err)
		}
	}

	if projectPath := findProjectConfig(dir); projectPath != "" {
		if err := mergeFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func userConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "codeintel", "config.yaml"), nil
}

func findProjectConfig(dir string) string {
	for _, name := range []string{".codeintel.yaml", ".codeintel.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// mergeFile unmarshals path's YAML onto an overlay Config seeded from cfg
// (so zero-valued overlay fields never clobber an already-set value) and
// writes the result back into cfg.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	overlay := *cfg
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	*cfg = overlay
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CODEINTEL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CODEINTEL_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("CODEINTEL_EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("CODEINTEL_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("CODEINTEL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate rejects configurations that would misbehave at runtime rather
// than failing later inside the indexer or embed adapter.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Performance.EmbedBatchSize <= 0 {
		return fmt.Errorf("performance.embed_batch_size must be positive")
	}
	if c.Performance.IndexConcurrency <= 0 {
		return fmt.Errorf("performance.index_concurrency must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	if c.CircuitBreaker.FailureThreshold <= 0 {
		return fmt.Errorf("circuit_breaker.failure_threshold must be positive")
	}
	return nil
}

// WriteYAML persists cfg to path, creating parent directories as needed.
func WriteYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
