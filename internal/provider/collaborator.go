package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/contextcore/recall/internal/event"
)

// Fact is one candidate fact returned by the extraction collaborator.
type Fact struct {
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

// Relation is the comparison collaborator's judgment of a candidate fact
// against one existing record.
type Relation string

const (
	RelationUnrelated   Relation = "unrelated"
	RelationRestates    Relation = "restates"
	RelationRefines     Relation = "refines"
	RelationContradicts Relation = "contradicts"
)

// Summarizer compresses a span of events into one natural-language summary.
type Summarizer interface {
	Summarize(ctx context.Context, events []event.Event) (string, error)
}

// Extractor pulls candidate facts out of a session transcript. An empty
// slice is a valid result: nothing worth remembering.
type Extractor interface {
	ExtractFacts(ctx context.Context, events []event.Event) ([]Fact, error)
}

// Comparer judges a candidate fact against an existing record's content.
type Comparer interface {
	Compare(ctx context.Context, candidate, existing string) (Relation, error)
}

// Embedder produces vectors for the store's similarity scoring.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Collaborator adapts a chat Provider into the four collaborator roles.
// Every call carries an explicit timeout; failures come back as
// *CollaboratorError so callers can branch on the timeout flag.
type Collaborator struct {
	provider Provider
	timeout  time.Duration
}

// DefaultTimeout bounds a single collaborator call. Compression amortizes
// 2-3 cycles over a 100-turn session, so each call must stay well under the
// 2s end-to-end budget.
const DefaultTimeout = 10 * time.Second

// NewCollaborator wraps p. A non-positive timeout falls back to DefaultTimeout.
func NewCollaborator(p Provider, timeout time.Duration) *Collaborator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Collaborator{provider: p, timeout: timeout}
}

// Summarize asks the model for a single coherent summary of the events.
// Empty or whitespace-only output is a failure, not a valid summary.
func (c *Collaborator) Summarize(ctx context.Context, events []event.Event) (string, error) {
	prompt := "Summarize the following conversation span into one coherent paragraph. " +
		"Capture topics discussed, user sentiment, and key facts. Output only the summary.\n\n" +
		formatTranscript(events)

	resp, err := c.chat(ctx, "summarize", prompt)
	if err != nil {
		return "", err
	}

	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", &CollaboratorError{Op: "summarize", Err: errors.New("empty summary returned")}
	}
	return summary, nil
}

// ExtractFacts asks the model for durable facts about the user as JSON.
func (c *Collaborator) ExtractFacts(ctx context.Context, events []event.Event) ([]Fact, error) {
	prompt := "Extract durable facts about the user from this transcript. " +
		"Respond with a JSON array of objects with \"content\" (string) and " +
		"\"confidence\" (0.0-1.0). Respond with [] if nothing is worth remembering.\n\n" +
		formatTranscript(events)

	resp, err := c.chat(ctx, "extract_facts", prompt)
	if err != nil {
		return nil, err
	}

	facts, err := parseFacts(resp.Content)
	if err != nil {
		return nil, &CollaboratorError{Op: "extract_facts", Err: err}
	}
	return facts, nil
}

// Compare asks the model to relate a candidate fact to an existing record.
func (c *Collaborator) Compare(ctx context.Context, candidate, existing string) (Relation, error) {
	prompt := fmt.Sprintf(
		"Candidate fact: %q\nExisting record: %q\n\n"+
			"Answer with exactly one word: unrelated, restates, refines, or contradicts.",
		candidate, existing)

	resp, err := c.chat(ctx, "compare", prompt)
	if err != nil {
		return "", err
	}

	switch Relation(strings.ToLower(strings.TrimSpace(resp.Content))) {
	case RelationUnrelated:
		return RelationUnrelated, nil
	case RelationRestates:
		return RelationRestates, nil
	case RelationRefines:
		return RelationRefines, nil
	case RelationContradicts:
		return RelationContradicts, nil
	default:
		return "", &CollaboratorError{Op: "compare", Err: fmt.Errorf("unrecognized judgment %q", resp.Content)}
	}
}

// Embed delegates to the underlying provider with the same timeout policy.
func (c *Collaborator) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	vec, err := c.provider.Embed(ctx, text)
	if err != nil {
		return nil, c.wrap("embed", err)
	}
	return vec, nil
}

func (c *Collaborator) chat(ctx context.Context, op, prompt string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.provider.Chat(ctx, []Message{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, c.wrap(op, err)
	}
	return resp, nil
}

func (c *Collaborator) wrap(op string, err error) error {
	return &CollaboratorError{
		Op:      op,
		Timeout: errors.Is(err, context.DeadlineExceeded),
		Err:     err,
	}
}

// parseFacts tolerates code fences and stray prose around the JSON array.
func parseFacts(raw string) ([]Fact, error) {
	raw = strings.TrimSpace(raw)
	if start := strings.Index(raw, "["); start >= 0 {
		if end := strings.LastIndex(raw, "]"); end > start {
			raw = raw[start : end+1]
		}
	}

	var facts []Fact
	if err := json.Unmarshal([]byte(raw), &facts); err != nil {
		return nil, fmt.Errorf("malformed fact list: %w", err)
	}
	for _, f := range facts {
		if f.Content == "" {
			return nil, errors.New("fact with empty content")
		}
		if f.Confidence < 0 || f.Confidence > 1 {
			return nil, fmt.Errorf("fact confidence %g out of range", f.Confidence)
		}
	}
	return facts, nil
}

func formatTranscript(events []event.Event) string {
	var sb strings.Builder
	for _, e := range events {
		fmt.Fprintf(&sb, "[turn %d] %s: %s\n", e.Turn, strings.ToUpper(string(e.Role)), e.Content)
	}
	return sb.String()
}
