// Package session owns the per-conversation working memory: the append-only
// event log, the scratchpad state, and the compression hook.
package session

import (
	"context"
	"time"

	"github.com/contextcore/recall/internal/compress"
	"github.com/contextcore/recall/internal/event"
	"github.com/contextcore/recall/internal/observe"
	"github.com/contextcore/recall/internal/protect"
)

// Session is the bounded working-memory container for one conversation.
// It is accessed sequentially within a conversation; cross-conversation
// concurrency lives in Manager.
type Session struct {
	ID string

	log        *event.Log
	state      map[string]any
	classifier *protect.Classifier
	compressor *compress.Compressor
	obs        *observe.Observer
}

// New creates a session. classifier and compressor are required; obs may be
// shared across sessions.
func New(id string, classifier *protect.Classifier, compressor *compress.Compressor, obs *observe.Observer) *Session {
	return &Session{
		ID:         id,
		log:        event.NewLog(),
		state:      make(map[string]any),
		classifier: classifier,
		compressor: compressor,
		obs:        obs,
	}
}

// Append validates and records one turn. Protection is classified here and
// cached on the event; compression cycles only read the cached flag.
func (s *Session) Append(turn int, role event.Role, content, eventType string) error {
	ev := event.Event{
		Turn:      turn,
		Role:      role,
		Content:   content,
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
	ev.Protected = s.classifier.Classify(ev)

	if err := s.log.Append(ev); err != nil {
		return err
	}
	return nil
}

// ContextWindow returns the current LLM-facing event sequence. The returned
// slice is a copy; callers may not mutate session history through it.
func (s *Session) ContextWindow() []event.Event {
	return s.log.Events()
}

// Compress runs a compression cycle when the token estimate has crossed the
// threshold; otherwise it is a no-op. The event log is only replaced after
// the compressor returns successfully, so a failed cycle leaves the session
// in its pre-call state.
func (s *Session) Compress(ctx context.Context) error {
	events := s.log.Events()
	if !s.compressor.ShouldCompress(events) {
		return nil
	}

	compressed, err := s.compressor.Compress(ctx, events)
	if err != nil {
		return err
	}

	s.log.Replace(compressed)
	s.state["compression_count"] = s.CompressionCount() + 1

	s.obs.Session(s.ID).Info().
		Int("events", len(compressed)).
		Int("cycles", s.CompressionCount()).
		Msg("context window compressed")

	return nil
}

// CompressionCount reports how many compression cycles have run.
func (s *Session) CompressionCount() int {
	if n, ok := s.state["compression_count"].(int); ok {
		return n
	}
	return 0
}

// SetState writes a scratchpad value. State is supplementary; the event log
// stays the sole source of truth for protected content.
func (s *Session) SetState(key string, value any) {
	s.state[key] = value
}

// State reads a scratchpad value.
func (s *Session) State(key string) (any, bool) {
	v, ok := s.state[key]
	return v, ok
}

// Len returns the number of events currently in the window.
func (s *Session) Len() int {
	return s.log.Len()
}
