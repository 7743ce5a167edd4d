// Package compress bounds a session's context window by replacing spans of
// non-protected, non-recent events with synthetic summary events.
package compress

import (
	"context"
	"fmt"
	"time"

	"github.com/contextcore/recall/internal/event"
	"github.com/contextcore/recall/internal/observe"
	"github.com/contextcore/recall/internal/provider"
	"github.com/contextcore/recall/internal/tokens"
)

// CapacityError signals that compression cannot free tokens: everything in
// the log is protected or inside the recency window. This is a structural
// problem for the caller to resolve (bigger window or narrower objectives),
// never something to retry automatically.
type CapacityError struct {
	RetainedTokens int
	MaxTokens      int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("cannot compress: %d retained tokens exceed budget of %d and no events are compressible",
		e.RetainedTokens, e.MaxTokens)
}

// Compressor performs threshold checks and compression cycles. It never
// mutates its input; Compress returns a fresh event sequence and the caller
// swaps it in atomically, so a failed cycle leaves the session untouched.
type Compressor struct {
	summarizer   provider.Summarizer
	est          *tokens.Estimator
	maxTokens    int
	threshold    float64
	recentWindow int
	obs          *observe.Observer
}

// New builds a compressor. threshold is the fraction of maxTokens at which
// ShouldCompress fires (default 0.95 when out of range); recentWindow is the
// number of trailing events always retained verbatim.
func New(s provider.Summarizer, est *tokens.Estimator, maxTokens int, threshold float64, recentWindow int, obs *observe.Observer) *Compressor {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.95
	}
	if recentWindow < 0 {
		recentWindow = 0
	}
	return &Compressor{
		summarizer:   s,
		est:          est,
		maxTokens:    maxTokens,
		threshold:    threshold,
		recentWindow: recentWindow,
		obs:          obs,
	}
}

// ShouldCompress reports whether the estimated token count has reached the
// configured fraction of the budget.
func (c *Compressor) ShouldCompress(events []event.Event) bool {
	return c.est.Events(events) >= int(float64(c.maxTokens)*c.threshold)
}

// Compress replaces each contiguous run of compressible events with a single
// summary event. Protected events and the trailing recentWindow events pass
// through verbatim, in original chronological order.
//
// The result is guaranteed to fit the token budget: after the splice the
// window is re-estimated, and when it is still over budget the cycle runs
// again over the result (summary nodes are themselves compressible). A pass
// that fails to shrink the estimate raises CapacityError instead of
// returning an over-budget window as success.
//
// If a summarization call fails, the run is retried once with its first
// half; the untouched remainder stays verbatim for the next cycle. A second
// failure propagates and the input is returned unchanged in spirit: the
// caller must not swap in anything.
func (c *Compressor) Compress(ctx context.Context, events []event.Event) ([]event.Event, error) {
	ctx, span := c.obs.StartSpan(ctx, "Compress")
	defer span.End()

	out, err := c.pass(ctx, events)
	if err != nil {
		return nil, err
	}

	for c.est.Events(out) > c.maxTokens {
		next, err := c.pass(ctx, out)
		if err != nil {
			return nil, err
		}
		if c.est.Events(next) >= c.est.Events(out) {
			err := &CapacityError{RetainedTokens: c.est.Events(next), MaxTokens: c.maxTokens}
			c.obs.Log().Warn().Int("retained_tokens", err.RetainedTokens).Msg("recompression made no progress toward the token budget")
			return nil, err
		}
		out = next
	}

	c.obs.Log().Info().
		Int("before", len(events)).
		Int("after", len(out)).
		Int("tokens", c.est.Events(out)).
		Msg("compression cycle complete")

	return out, nil
}

// pass performs one splice over the events.
func (c *Compressor) pass(ctx context.Context, events []event.Event) ([]event.Event, error) {
	recentBoundary := len(events) - c.recentWindow
	if recentBoundary < 0 {
		recentBoundary = 0
	}

	var retained, run []event.Event
	for i, ev := range events {
		if i >= recentBoundary || ev.Protected {
			retained = append(retained, ev)
			continue
		}
		run = append(run, ev)
	}

	if len(run) == 0 {
		err := &CapacityError{RetainedTokens: c.est.Events(retained), MaxTokens: c.maxTokens}
		c.obs.Log().Warn().Int("retained_tokens", err.RetainedTokens).Msg("compression found nothing compressible")
		return nil, err
	}

	// Protected plus recent events survive every cycle; if they alone bust
	// the budget, summarizing the rest cannot help and the collaborator call
	// would be wasted.
	if retainedTokens := c.est.Events(retained); retainedTokens > c.maxTokens {
		err := &CapacityError{RetainedTokens: retainedTokens, MaxTokens: c.maxTokens}
		c.obs.Log().Warn().Int("retained_tokens", retainedTokens).Msg("retained events alone exceed the token budget")
		return nil, err
	}

	// Walk again, this time splicing: each contiguous compressible run is
	// replaced in place by one summary node.
	var out []event.Event
	var pending []event.Event
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		summary, err := c.summarizeRun(ctx, pending)
		if err != nil {
			return err
		}
		out = append(out, summary...)
		pending = nil
		return nil
	}

	for i, ev := range events {
		if i >= recentBoundary || ev.Protected {
			if err := flush(); err != nil {
				return nil, err
			}
			out = append(out, ev)
			continue
		}
		pending = append(pending, ev)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return out, nil
}

// summarizeRun produces the replacement events for one compressible run:
// normally a single summary node, or summary-of-first-half plus verbatim
// second half when the full call failed once.
func (c *Compressor) summarizeRun(ctx context.Context, run []event.Event) ([]event.Event, error) {
	text, err := c.summarizer.Summarize(ctx, run)
	if err == nil {
		return []event.Event{c.summaryEvent(run[0].Turn, text)}, nil
	}

	if len(run) < 2 {
		return nil, fmt.Errorf("summarize span starting at turn %d: %w", run[0].Turn, err)
	}

	c.obs.Log().Warn().Err(err).Int("span", len(run)).Msg("summarization failed, retrying with smaller batch")

	half := run[:len(run)/2]
	text, retryErr := c.summarizer.Summarize(ctx, half)
	if retryErr != nil {
		return nil, fmt.Errorf("summarize span starting at turn %d after retry: %w", run[0].Turn, retryErr)
	}

	out := []event.Event{c.summaryEvent(half[0].Turn, text)}
	out = append(out, run[len(run)/2:]...)
	return out, nil
}

func (c *Compressor) summaryEvent(turn int, text string) event.Event {
	return event.Event{
		Turn:      turn,
		Role:      event.RoleAgent,
		Content:   text,
		EventType: event.TypeSummary,
		Timestamp: time.Now().UTC(),
		Protected: false,
	}
}

// MaxTokens exposes the configured budget for callers that report it.
func (c *Compressor) MaxTokens() int {
	return c.maxTokens
}
