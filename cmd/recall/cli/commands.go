package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/contextcore/recall/internal/config"
	"github.com/contextcore/recall/internal/memory"
	"github.com/contextcore/recall/internal/observe"
	"github.com/contextcore/recall/internal/provider"
	"github.com/contextcore/recall/internal/redact"
	"github.com/contextcore/recall/internal/store"
)

var auditOutput string

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Rank stored memory against a query",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, obs, st := setup()
		defer obs.Close()
		defer st.Close()

		weights := store.Weights{
			Relevance:  cfg.Retrieval.RelevanceWeight,
			Recency:    cfg.Retrieval.RecencyWeight,
			Importance: cfg.Retrieval.ImportanceWeight,
		}

		results, err := st.Search(queryEmbedding(cfg, obs, args[0]), weights, cfg.Retrieval.Limit)
		if err != nil {
			obs.Log().Fatal().Err(err).Msg("Search failed")
		}
		for i, r := range results {
			fmt.Printf("%2d. [%.3f] %s\n    %s, confidence %.2f, updated %s\n",
				i+1, r.Score, r.Record.Content,
				r.Record.Status, r.Record.EffectiveConfidence(),
				r.Record.UpdatedAt.Format(time.DateOnly))
		}
	},
}

// queryEmbedding is best effort: without a working provider the ranking
// still runs on recency and provenance, and every degradation is logged so
// the user knows why relevance dropped out.
func queryEmbedding(cfg *config.Config, obs *observe.Observer, query string) []float32 {
	p, err := newProvider(cfg)
	if err != nil {
		obs.Log().Warn().Err(err).Msg("Provider unavailable, ranking without relevance")
		return nil
	}

	collab := provider.NewCollaborator(p, cfg.Provider.Timeout())
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Provider.Timeout())
	defer cancel()

	vec, err := collab.Embed(ctx, query)
	if err != nil {
		obs.Log().Warn().Err(err).Msg("Embedding unavailable, ranking without relevance")
		return nil
	}
	return vec
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Export the provenance ledger as JSON",
	Run: func(cmd *cobra.Command, args []string) {
		_, obs, st := setup()
		defer obs.Close()
		defer st.Close()

		entries, err := st.ExportAudit()
		if err != nil {
			obs.Log().Fatal().Err(err).Msg("Audit export failed")
		}

		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			obs.Log().Fatal().Err(err).Msg("Failed to encode audit entries")
		}

		if auditOutput == "" {
			fmt.Println(string(data))
			return
		}
		if err := os.WriteFile(auditOutput, data, 0600); err != nil {
			obs.Log().Fatal().Err(err).Msg("Failed to write audit file")
		}
		obs.Log().Info().Str("path", auditOutput).Int("entries", len(entries)).Msg("Audit exported")
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the memory store",
	Run: func(cmd *cobra.Command, args []string) {
		_, obs, st := setup()
		defer obs.Close()
		defer st.Close()

		records, err := st.List()
		if err != nil {
			obs.Log().Fatal().Err(err).Msg("Failed to list records")
		}

		byStatus := map[memory.ValidationStatus]int{}
		for _, rec := range records {
			byStatus[rec.Status]++
		}

		fmt.Printf("records:        %d\n", len(records))
		fmt.Printf("user_confirmed: %d\n", byStatus[memory.StatusUserConfirmed])
		fmt.Printf("agent_inferred: %d\n", byStatus[memory.StatusAgentInferred])
		fmt.Printf("disputed:       %d\n", byStatus[memory.StatusDisputed])
	},
}

var redactCmd = &cobra.Command{
	Use:   "redact [text]",
	Short: "Preview PII redaction with the configured whitelist",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, obs, st := setup()
		defer obs.Close()
		defer st.Close()

		fmt.Println(redact.New(cfg.Redaction.Whitelist).Redact(args[0]))
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget [memory-id]",
	Short: "Delete a memory record",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, obs, st := setup()
		defer obs.Close()
		defer st.Close()

		if err := st.Delete(args[0]); err != nil {
			obs.Log().Fatal().Err(err).Msg("Delete failed")
		}
		obs.Log().Info().Str("memory_id", args[0]).Msg("Record deleted")
	},
}

func init() {
	auditCmd.Flags().StringVarP(&auditOutput, "output", "o", "", "Write audit JSON to a file instead of stdout")
}
