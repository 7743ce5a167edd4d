// Package protect decides which events are exempt from compression.
package protect

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/contextcore/recall/internal/event"
)

// Classifier applies an ordered rule set to a single event. It is pure and
// deterministic; the session caches the result on the event at append time.
//
// Rule order, first match wins:
//  1. turn 0 is always protected, even with empty content
//  2. empty or whitespace-only content is never protected
//  3. constraint keyword match
//  4. correction keyword match
//  5. protected event-type glob match
type Classifier struct {
	constraintKeywords []string
	correctionKeywords []string
	typeGlobs          []string
}

// DefaultConstraintKeywords flag standing instructions the user expects the
// agent to honor for the rest of the conversation.
var DefaultConstraintKeywords = []string{"always", "never", "must", "only", "prefer"}

// DefaultCorrectionKeywords flag places where the user amended something the
// agent believed. Losing these re-introduces the original mistake.
var DefaultCorrectionKeywords = []string{"actually", "i meant", "correction"}

// DefaultTypeGlobs match event types that must survive verbatim.
var DefaultTypeGlobs = []string{"auth_*", event.TypeObjective}

// New builds a classifier. Nil slices fall back to the defaults.
func New(constraints, corrections, typeGlobs []string) *Classifier {
	if constraints == nil {
		constraints = DefaultConstraintKeywords
	}
	if corrections == nil {
		corrections = DefaultCorrectionKeywords
	}
	if typeGlobs == nil {
		typeGlobs = DefaultTypeGlobs
	}
	return &Classifier{
		constraintKeywords: lowerAll(constraints),
		correctionKeywords: lowerAll(corrections),
		typeGlobs:          typeGlobs,
	}
}

// Classify reports whether e must survive compression verbatim.
func (c *Classifier) Classify(e event.Event) bool {
	// Turn 0 carries the initial objective and wins over every other rule,
	// including the empty-content exclusion below.
	if e.Turn == 0 {
		return true
	}

	content := strings.ToLower(strings.TrimSpace(e.Content))
	if content == "" {
		return false
	}

	for _, kw := range c.constraintKeywords {
		if strings.Contains(content, kw) {
			return true
		}
	}

	for _, kw := range c.correctionKeywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	// A leading "no," is a correction even without a keyword.
	if strings.HasPrefix(content, "no,") {
		return true
	}

	for _, pattern := range c.typeGlobs {
		if ok, err := doublestar.Match(pattern, e.EventType); err == nil && ok {
			return true
		}
	}

	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
