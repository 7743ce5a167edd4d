// Package config loads the runtime configuration from a JSON or YAML file
// and fills in defaults for everything left unset.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	Provider      ProviderConfig      `json:"provider" yaml:"provider"`
	Compression   CompressionConfig   `json:"compression" yaml:"compression"`
	Protection    ProtectionConfig    `json:"protection" yaml:"protection"`
	Redaction     RedactionConfig     `json:"redaction" yaml:"redaction"`
	Consolidation ConsolidationConfig `json:"consolidation" yaml:"consolidation"`
	Store         StoreConfig         `json:"store" yaml:"store"`
	Retrieval     RetrievalConfig     `json:"retrieval" yaml:"retrieval"`
	Verbose       bool                `json:"verbose" yaml:"verbose"`
}

type ProviderConfig struct {
	Name           string `json:"name" yaml:"name"`
	Model          string `json:"model" yaml:"model"`
	EmbeddingModel string `json:"embedding_model" yaml:"embedding_model"`
	BaseURL        string `json:"base_url" yaml:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

type CompressionConfig struct {
	MaxTokens     int     `json:"max_tokens" yaml:"max_tokens"`
	Threshold     float64 `json:"threshold" yaml:"threshold"`
	RecentWindow  int     `json:"recent_window" yaml:"recent_window"`
	CharsPerToken float64 `json:"chars_per_token" yaml:"chars_per_token"`
}

type ProtectionConfig struct {
	ConstraintKeywords []string `json:"constraint_keywords" yaml:"constraint_keywords"`
	CorrectionKeywords []string `json:"correction_keywords" yaml:"correction_keywords"`
	EventTypeGlobs     []string `json:"event_type_globs" yaml:"event_type_globs"`
}

type RedactionConfig struct {
	Whitelist []string `json:"whitelist" yaml:"whitelist"`
}

type ConsolidationConfig struct {
	ConflictPolicy string `json:"conflict_policy" yaml:"conflict_policy"`
}

type StoreConfig struct {
	Path string `json:"path" yaml:"path"`
}

type RetrievalConfig struct {
	Limit            int     `json:"limit" yaml:"limit"`
	RelevanceWeight  float64 `json:"relevance_weight" yaml:"relevance_weight"`
	RecencyWeight    float64 `json:"recency_weight" yaml:"recency_weight"`
	ImportanceWeight float64 `json:"importance_weight" yaml:"importance_weight"`
	Strategy         string  `json:"strategy" yaml:"strategy"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name:           "ollama",
			Model:          "llama3.2",
			TimeoutSeconds: 10,
		},
		Compression: CompressionConfig{
			MaxTokens:     8000,
			Threshold:     0.95,
			RecentWindow:  5,
			CharsPerToken: 4.0,
		},
		Consolidation: ConsolidationConfig{
			ConflictPolicy: "create",
		},
		Store: StoreConfig{
			Path: defaultStorePath(),
		},
		Retrieval: RetrievalConfig{
			Limit:            5,
			RelevanceWeight:  0.5,
			RecencyWeight:    0.3,
			ImportanceWeight: 0.2,
			Strategy:         "proactive",
		},
	}
}

// Load reads a configuration file (JSON or YAML) and overlays it on the
// defaults. An empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s (use .json or .yaml)", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the runtime cannot work with.
func (c *Config) Validate() error {
	if c.Compression.MaxTokens <= 0 {
		return fmt.Errorf("compression.max_tokens must be positive, got %d", c.Compression.MaxTokens)
	}
	if c.Compression.Threshold <= 0 || c.Compression.Threshold > 1 {
		return fmt.Errorf("compression.threshold must be in (0, 1], got %g", c.Compression.Threshold)
	}
	if c.Compression.RecentWindow < 0 {
		return fmt.Errorf("compression.recent_window must not be negative, got %d", c.Compression.RecentWindow)
	}
	switch c.Consolidation.ConflictPolicy {
	case "create", "keep":
	default:
		return fmt.Errorf("consolidation.conflict_policy must be create or keep, got %q", c.Consolidation.ConflictPolicy)
	}
	switch c.Retrieval.Strategy {
	case "proactive", "reactive", "hybrid":
	default:
		return fmt.Errorf("retrieval.strategy must be proactive, reactive, or hybrid, got %q", c.Retrieval.Strategy)
	}
	if c.Retrieval.Limit <= 0 {
		return fmt.Errorf("retrieval.limit must be positive, got %d", c.Retrieval.Limit)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	return nil
}

// Timeout returns the provider timeout as a duration.
func (c *ProviderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "recall.db"
	}
	return filepath.Join(home, ".recall", "recall.db")
}
