package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Compression.MaxTokens != 8000 {
		t.Errorf("max_tokens = %d, want 8000", cfg.Compression.MaxTokens)
	}
	if cfg.Compression.Threshold != 0.95 {
		t.Errorf("threshold = %g, want 0.95", cfg.Compression.Threshold)
	}
	if cfg.Consolidation.ConflictPolicy != "create" {
		t.Errorf("conflict_policy = %q, want create", cfg.Consolidation.ConflictPolicy)
	}
	if cfg.Retrieval.Strategy != "proactive" {
		t.Errorf("strategy = %q, want proactive", cfg.Retrieval.Strategy)
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := writeConfig(t, "recall.yaml", `
provider:
  name: openai
  model: gpt-4o-mini
compression:
  max_tokens: 4000
  threshold: 0.9
  recent_window: 3
  chars_per_token: 4.0
redaction:
  whitelist:
    - Jane Doe
consolidation:
  conflict_policy: keep
store:
  path: /tmp/recall-test.db
retrieval:
  limit: 3
  relevance_weight: 0.6
  recency_weight: 0.2
  importance_weight: 0.2
  strategy: hybrid
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.Name != "openai" || cfg.Provider.Model != "gpt-4o-mini" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Compression.MaxTokens != 4000 || cfg.Compression.RecentWindow != 3 {
		t.Errorf("compression = %+v", cfg.Compression)
	}
	if len(cfg.Redaction.Whitelist) != 1 || cfg.Redaction.Whitelist[0] != "Jane Doe" {
		t.Errorf("whitelist = %v", cfg.Redaction.Whitelist)
	}
	if cfg.Consolidation.ConflictPolicy != "keep" {
		t.Errorf("conflict_policy = %q", cfg.Consolidation.ConflictPolicy)
	}
	if cfg.Retrieval.Strategy != "hybrid" || cfg.Retrieval.Limit != 3 {
		t.Errorf("retrieval = %+v", cfg.Retrieval)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "recall.json", `{
		"compression": {"max_tokens": 2000, "threshold": 0.8, "recent_window": 2, "chars_per_token": 4.0},
		"consolidation": {"conflict_policy": "create"},
		"store": {"path": "/tmp/recall-test.db"},
		"retrieval": {"limit": 5, "relevance_weight": 0.5, "recency_weight": 0.3, "importance_weight": 0.2, "strategy": "reactive"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Compression.MaxTokens != 2000 {
		t.Errorf("max_tokens = %d, want 2000", cfg.Compression.MaxTokens)
	}
	if cfg.Retrieval.Strategy != "reactive" {
		t.Errorf("strategy = %q, want reactive", cfg.Retrieval.Strategy)
	}
}

func TestLoadRejectsUnsupportedExtension(t *testing.T) {
	path := writeConfig(t, "recall.toml", `max_tokens = 8000`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max tokens", func(c *Config) { c.Compression.MaxTokens = 0 }},
		{"threshold above one", func(c *Config) { c.Compression.Threshold = 1.5 }},
		{"negative recent window", func(c *Config) { c.Compression.RecentWindow = -1 }},
		{"unknown conflict policy", func(c *Config) { c.Consolidation.ConflictPolicy = "merge" }},
		{"unknown strategy", func(c *Config) { c.Retrieval.Strategy = "eager" }},
		{"zero retrieval limit", func(c *Config) { c.Retrieval.Limit = 0 }},
		{"empty store path", func(c *Config) { c.Store.Path = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
