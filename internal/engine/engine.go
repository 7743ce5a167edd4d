// Package engine wires the session layer, the collaborators, and the store
// into one runtime: record turns, compress when needed, recall memory, and
// consolidate when a session ends.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/contextcore/recall/internal/compress"
	"github.com/contextcore/recall/internal/config"
	"github.com/contextcore/recall/internal/consolidate"
	"github.com/contextcore/recall/internal/event"
	"github.com/contextcore/recall/internal/memory"
	"github.com/contextcore/recall/internal/observe"
	"github.com/contextcore/recall/internal/protect"
	"github.com/contextcore/recall/internal/provider"
	"github.com/contextcore/recall/internal/redact"
	"github.com/contextcore/recall/internal/session"
	"github.com/contextcore/recall/internal/store"
	"github.com/contextcore/recall/internal/tokens"
)

// Strategy decides when stored memory is pulled into a session.
type Strategy string

const (
	// StrategyProactive injects relevant memory when the session starts.
	StrategyProactive Strategy = "proactive"
	// StrategyReactive retrieves only on explicit Recall calls.
	StrategyReactive Strategy = "reactive"
	// StrategyHybrid does both.
	StrategyHybrid Strategy = "hybrid"
)

// Store is the persistence surface the engine needs.
type Store interface {
	List() ([]*memory.Record, error)
	Search(queryVector []float32, weights store.Weights, limit int) ([]store.Result, error)
	Apply(create, update []*memory.Record) error
}

// Engine is the top-level runtime.
type Engine struct {
	manager      *session.Manager
	collaborator *provider.Collaborator
	consolidator *consolidate.Consolidator
	store        Store
	weights      store.Weights
	limit        int
	strategy     Strategy
	obs          *observe.Observer
}

// New assembles an engine from configuration, a chat provider, and an open
// store.
func New(cfg *config.Config, p provider.Provider, st Store, obs *observe.Observer) *Engine {
	est := tokens.NewEstimator(cfg.Compression.CharsPerToken)
	collab := provider.NewCollaborator(p, cfg.Provider.Timeout())
	classifier := protect.New(
		cfg.Protection.ConstraintKeywords,
		cfg.Protection.CorrectionKeywords,
		cfg.Protection.EventTypeGlobs,
	)
	compressor := compress.New(collab, est,
		cfg.Compression.MaxTokens, cfg.Compression.Threshold, cfg.Compression.RecentWindow, obs)
	redactor := redact.New(cfg.Redaction.Whitelist)
	consolidator := consolidate.New(collab, collab, collab, redactor,
		consolidate.ConflictPolicy(cfg.Consolidation.ConflictPolicy), obs)

	return &Engine{
		manager:      session.NewManager(classifier, compressor, obs),
		collaborator: collab,
		consolidator: consolidator,
		store:        st,
		weights: store.Weights{
			Relevance:  cfg.Retrieval.RelevanceWeight,
			Recency:    cfg.Retrieval.RecencyWeight,
			Importance: cfg.Retrieval.ImportanceWeight,
		},
		limit:    cfg.Retrieval.Limit,
		strategy: Strategy(cfg.Retrieval.Strategy),
		obs:      obs,
	}
}

// StartSession opens a session. Under the proactive and hybrid strategies,
// stored memory is ranked and injected as a protected turn-0 context event;
// conversation turns then start at 1. Retrieval failure downgrades the start
// to a cold one rather than blocking it.
func (e *Engine) StartSession(ctx context.Context, id string) (*session.Session, error) {
	ctx, span := e.obs.StartSpan(ctx, "StartSession")
	defer span.End()

	s, err := e.manager.Open(id)
	if err != nil {
		return nil, err
	}

	if e.strategy == StrategyReactive {
		return s, nil
	}

	results, err := e.store.Search(nil, e.weights, e.limit)
	if err != nil {
		e.obs.Session(id).Warn().Err(err).Msg("memory retrieval failed, starting cold")
		return s, nil
	}
	if len(results) == 0 {
		return s, nil
	}

	if err := s.Append(0, event.RoleTool, formatMemoryContext(results), event.TypeMemoryContext); err != nil {
		return nil, fmt.Errorf("injecting memory context: %w", err)
	}
	e.obs.Session(id).Info().Int("memories", len(results)).Msg("memory context injected")
	return s, nil
}

// Record appends one turn and runs a compression cycle if the window has
// crossed its threshold. A failed cycle leaves the window intact; the error
// is returned so the caller can decide whether to retry or carry on.
func (e *Engine) Record(ctx context.Context, sessionID string, turn int, role event.Role, content, eventType string) error {
	s, ok := e.manager.Get(sessionID)
	if !ok {
		return fmt.Errorf("session %q not found", sessionID)
	}
	if err := s.Append(turn, role, content, eventType); err != nil {
		return err
	}
	return s.Compress(ctx)
}

// Recall ranks stored memory against a free-text query. The query is
// embedded through the collaborator; if embedding fails, ranking falls back
// to recency and importance.
func (e *Engine) Recall(ctx context.Context, query string) ([]store.Result, error) {
	ctx, span := e.obs.StartSpan(ctx, "Recall")
	defer span.End()

	var queryVec []float32
	if query != "" {
		vec, err := e.collaborator.Embed(ctx, query)
		if err != nil {
			e.obs.Log().Warn().Err(err).Msg("query embedding failed, ranking without relevance")
		} else {
			queryVec = vec
		}
	}
	return e.store.Search(queryVec, e.weights, e.limit)
}

// EndSession closes the session and consolidates its transcript into the
// store. Collaborator failure is logged and the error returned with the raw
// transcript, so the caller can retry consolidation later; nothing is
// persisted in that case. A *consolidate.ConflictError is soft: the plan was
// applied and the conflicts are reported for review.
func (e *Engine) EndSession(ctx context.Context, id string) ([]event.Event, error) {
	ctx, span := e.obs.StartSpan(ctx, "EndSession")
	defer span.End()

	s, err := e.manager.Close(id)
	if err != nil {
		return nil, err
	}
	transcript := s.ContextWindow()

	existing, err := e.store.List()
	if err != nil {
		return transcript, fmt.Errorf("loading existing memory: %w", err)
	}

	plan, consErr := e.consolidator.Consolidate(ctx, id, transcript, existing)
	if plan == nil {
		e.obs.Session(id).Error().Err(consErr).Msg("consolidation deferred")
		return transcript, consErr
	}

	if err := e.store.Apply(plan.Create, plan.Update); err != nil {
		return transcript, fmt.Errorf("applying consolidation plan: %w", err)
	}
	return transcript, consErr
}

// Session exposes a live session for direct inspection.
func (e *Engine) Session(id string) (*session.Session, bool) {
	return e.manager.Get(id)
}

func formatMemoryContext(results []store.Result) string {
	var sb strings.Builder
	sb.WriteString("Relevant memory from previous sessions:\n")
	for _, r := range results {
		fmt.Fprintf(&sb, "- %s (%s, confidence %.2f, last updated %s)\n",
			r.Record.Content, r.Record.Status,
			r.Record.EffectiveConfidence(),
			r.Record.UpdatedAt.Format(time.DateOnly))
	}
	return sb.String()
}
