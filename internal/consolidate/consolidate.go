// Package consolidate turns a finished session's transcript into durable
// memory. Extraction and comparison are delegated to model collaborators;
// the merge itself is deterministic so the same judgments always produce
// the same plan.
package consolidate

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/contextcore/recall/internal/event"
	"github.com/contextcore/recall/internal/memory"
	"github.com/contextcore/recall/internal/observe"
	"github.com/contextcore/recall/internal/provider"
	"github.com/contextcore/recall/internal/redact"
)

// ConflictPolicy controls what happens when a candidate fact contradicts an
// existing record.
type ConflictPolicy string

const (
	// PolicyCreate keeps both sides: the candidate becomes a new record and
	// the contradicted record is marked disputed. This is the default; the
	// newer statement is not assumed to be the truer one.
	PolicyCreate ConflictPolicy = "create"

	// PolicyKeep drops the candidate and only marks the existing record
	// disputed.
	PolicyKeep ConflictPolicy = "keep"
)

// Conflict reports one contradiction found during consolidation.
type Conflict struct {
	Candidate  string `json:"candidate"`
	ExistingID string `json:"existing_id"`
}

// ConflictError is a soft signal: the plan it accompanies is complete and
// applicable, the error only surfaces contradictions for review.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%d contradiction(s) found during consolidation", len(e.Conflicts))
}

// Plan is the deterministic output of one consolidation run. Create holds
// brand-new records; Update holds existing records whose confidence, status,
// or content changed. Records appear in at most one list. There is no delete
// list: contradicted records are disputed, never removed, so deletion only
// happens as an explicit operator action on the store.
type Plan struct {
	Create []*memory.Record
	Update []*memory.Record
}

// Consolidator runs the extract, redact, compare, merge pipeline.
type Consolidator struct {
	extractor provider.Extractor
	comparer  provider.Comparer
	embedder  provider.Embedder
	redactor  *redact.Redactor
	policy    ConflictPolicy
	obs       *observe.Observer

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// New creates a consolidator. embedder may be nil; records are then stored
// without vectors and matched by recency and importance alone.
func New(ex provider.Extractor, cmp provider.Comparer, em provider.Embedder, red *redact.Redactor, policy ConflictPolicy, obs *observe.Observer) *Consolidator {
	if policy == "" {
		policy = PolicyCreate
	}
	return &Consolidator{
		extractor: ex,
		comparer:  cmp,
		embedder:  em,
		redactor:  red,
		policy:    policy,
		obs:       obs,
		entropy:   ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Consolidate extracts facts from the transcript and merges them against the
// existing records. Extraction failure aborts the run with no plan; the
// caller keeps the raw transcript and retries later. A returned
// *ConflictError is soft and accompanies a complete plan.
//
// Existing records are mutated in place when they land in Plan.Update.
func (c *Consolidator) Consolidate(ctx context.Context, sessionID string, events []event.Event, existing []*memory.Record) (*Plan, error) {
	ctx, span := c.obs.StartSpan(ctx, "Consolidate")
	defer span.End()

	facts, err := c.extractor.ExtractFacts(ctx, events)
	if err != nil {
		return nil, fmt.Errorf("extracting facts from session %s: %w", sessionID, err)
	}

	plan := &Plan{}
	var conflicts []Conflict
	updated := make(map[string]bool)
	seen := make(map[string]bool)

	for _, fact := range facts {
		content := c.redactor.Redact(strings.TrimSpace(fact.Content))
		if content == "" || seen[content] {
			continue
		}
		seen[content] = true

		rel, match, err := c.classify(ctx, content, existing)
		if err != nil {
			return nil, fmt.Errorf("comparing fact against memory: %w", err)
		}

		switch rel {
		case provider.RelationUnrelated:
			rec, err := c.newRecord(ctx, content, sessionID, fact.Confidence)
			if err != nil {
				return nil, err
			}
			plan.Create = append(plan.Create, rec)
			existing = append(existing, rec)

		case provider.RelationRestates:
			match.Confirm("restated in session "+sessionID, sessionID, c.now())
			if !updated[match.MemoryID] {
				updated[match.MemoryID] = true
				plan.Update = append(plan.Update, match)
			}

		case provider.RelationRefines:
			match.Content = content
			match.Confirm("refined in session "+sessionID, sessionID, c.now())
			c.embed(ctx, match)
			if !updated[match.MemoryID] {
				updated[match.MemoryID] = true
				plan.Update = append(plan.Update, match)
			}

		case provider.RelationContradicts:
			conflicts = append(conflicts, Conflict{Candidate: content, ExistingID: match.MemoryID})
			match.Dispute("contradicted in session "+sessionID, c.now())
			if !updated[match.MemoryID] {
				updated[match.MemoryID] = true
				plan.Update = append(plan.Update, match)
			}
			if c.policy == PolicyCreate {
				rec, err := c.newRecord(ctx, content, sessionID, fact.Confidence)
				if err != nil {
					return nil, err
				}
				plan.Create = append(plan.Create, rec)
				existing = append(existing, rec)
			}
		}
	}

	c.obs.Session(sessionID).Info().
		Int("extracted", len(facts)).
		Int("created", len(plan.Create)).
		Int("updated", len(plan.Update)).
		Int("conflicts", len(conflicts)).
		Msg("consolidation complete")

	if len(conflicts) > 0 {
		return plan, &ConflictError{Conflicts: conflicts}
	}
	return plan, nil
}

// classify finds the first existing record the candidate relates to.
// Unrelated across the board means the fact is new.
func (c *Consolidator) classify(ctx context.Context, candidate string, existing []*memory.Record) (provider.Relation, *memory.Record, error) {
	for _, rec := range existing {
		rel, err := c.comparer.Compare(ctx, candidate, rec.Content)
		if err != nil {
			return "", nil, err
		}
		if rel != provider.RelationUnrelated {
			return rel, rec, nil
		}
	}
	return provider.RelationUnrelated, nil, nil
}

func (c *Consolidator) newRecord(ctx context.Context, content, sessionID string, confidence float64) (*memory.Record, error) {
	rec, err := memory.NewRecord(c.newID(), content, sessionID, confidence, c.now())
	if err != nil {
		return nil, fmt.Errorf("building record: %w", err)
	}
	c.embed(ctx, rec)
	return rec, nil
}

// embed is best effort. A missing vector degrades retrieval ranking, it does
// not block persistence.
func (c *Consolidator) embed(ctx context.Context, rec *memory.Record) {
	if c.embedder == nil {
		return
	}
	vec, err := c.embedder.Embed(ctx, rec.Content)
	if err != nil {
		c.obs.Log().Warn().Str("memory_id", rec.MemoryID).Err(err).Msg("embedding failed, storing without vector")
		return
	}
	rec.Embedding = vec
}

func (c *Consolidator) newID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(c.now()), c.entropy).String()
}
