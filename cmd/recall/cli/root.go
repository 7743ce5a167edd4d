package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/contextcore/recall/internal/config"
	"github.com/contextcore/recall/internal/observe"
	"github.com/contextcore/recall/internal/provider"
	"github.com/contextcore/recall/internal/store"
)

var (
	configPath string
	verbose    bool
	jsonOutput bool
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Persistent memory for conversational agents",
	Long: `Recall maintains a bounded working context for agent sessions and
consolidates what matters into a durable, auditable memory store.`,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (.json or .yaml)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	RootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Structured JSON log output")

	RootCmd.AddCommand(searchCmd)
	RootCmd.AddCommand(auditCmd)
	RootCmd.AddCommand(statsCmd)
	RootCmd.AddCommand(redactCmd)
	RootCmd.AddCommand(forgetCmd)
}

// setup loads configuration, the observer, and the store. Every subcommand
// starts here.
func setup() (*config.Config, *observe.Observer, *store.SQLiteStore) {
	var obs *observe.Observer
	if jsonOutput {
		obs = observe.NewJSON(os.Stderr, verbose)
	} else {
		obs = observe.New(os.Stderr, verbose)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		obs.Log().Fatal().Err(err).Msg("Failed to load config")
	}

	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		obs.Log().Fatal().Err(err).Msg("Failed to init store")
	}
	return cfg, obs, st
}

// newProvider builds the configured chat provider. API keys come from the
// environment.
func newProvider(cfg *config.Config) (provider.Provider, error) {
	switch cfg.Provider.Name {
	case "openai":
		return provider.NewOpenAIProvider(os.Getenv("OPENAI_API_KEY"), cfg.Provider.BaseURL, cfg.Provider.Model)
	case "ollama":
		return provider.NewOllamaProvider(cfg.Provider.Model)
	case "gemini":
		return provider.NewGeminiProvider(os.Getenv("GEMINI_API_KEY"), cfg.Provider.Model)
	case "anthropic":
		return provider.NewAnthropicProvider(os.Getenv("ANTHROPIC_API_KEY"), cfg.Provider.Model)
	case "stub":
		return provider.NewStubProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
	}
}
