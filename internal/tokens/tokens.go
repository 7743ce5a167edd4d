// Package tokens estimates token counts for context budget management.
// The heuristic is calibrated for modern LLM tokenizers (~4 characters per
// token); precise counting belongs to the provider, not this library.
package tokens

import (
	"unicode/utf8"

	"github.com/contextcore/recall/internal/event"
)

// perEventOverhead covers role/type/turn framing around each event.
const perEventOverhead = 8

// Estimator converts text volume into an approximate token count.
type Estimator struct {
	charsPerToken float64
}

// NewEstimator returns an estimator with the given calibration factor.
// Values <= 0 fall back to 4.0.
func NewEstimator(charsPerToken float64) *Estimator {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &Estimator{charsPerToken: charsPerToken}
}

// Text estimates tokens in a string.
func (e *Estimator) Text(s string) int {
	if s == "" {
		return 0
	}
	return int(float64(utf8.RuneCountInString(s)) / e.charsPerToken)
}

// Event estimates tokens for a single event including framing overhead.
func (e *Estimator) Event(ev event.Event) int {
	return e.Text(ev.Content) + perEventOverhead
}

// Events estimates tokens for an event sequence.
func (e *Estimator) Events(evs []event.Event) int {
	total := 0
	for _, ev := range evs {
		total += e.Event(ev)
	}
	return total
}
