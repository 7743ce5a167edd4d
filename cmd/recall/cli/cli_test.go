package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/contextcore/recall/internal/config"
	"github.com/contextcore/recall/internal/observe"
)

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{
		"search": false,
		"audit":  false,
		"stats":  false,
		"redact": false,
		"forget": false,
	}
	for _, cmd := range RootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestNewProvider(t *testing.T) {
	cfg := config.Default()

	cfg.Provider.Name = "stub"
	if _, err := newProvider(cfg); err != nil {
		t.Errorf("stub provider: %v", err)
	}

	cfg.Provider.Name = "telepathy"
	if _, err := newProvider(cfg); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestQueryEmbeddingDegradesLoudly(t *testing.T) {
	var buf bytes.Buffer
	obs := observe.New(&buf, false)

	cfg := config.Default()
	cfg.Provider.Name = "telepathy"

	if vec := queryEmbedding(cfg, obs, "coffee"); vec != nil {
		t.Errorf("vector = %v, want nil for a broken provider", vec)
	}
	if !strings.Contains(buf.String(), "Provider unavailable") {
		t.Errorf("provider failure not logged, output: %q", buf.String())
	}

	cfg.Provider.Name = "stub"
	if vec := queryEmbedding(cfg, obs, "coffee"); len(vec) == 0 {
		t.Error("stub provider should produce an embedding")
	}
}
