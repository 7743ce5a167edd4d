// Package memory defines the provenance-tracked fact records produced by
// consolidation and served back at session start.
package memory

import (
	"fmt"
	"time"
)

// ValidationStatus tracks how much trust a record has earned.
type ValidationStatus string

const (
	StatusAgentInferred ValidationStatus = "agent_inferred"
	StatusUserConfirmed ValidationStatus = "user_confirmed"
	StatusDisputed      ValidationStatus = "disputed"
)

// Adjustment bounds applied by Confirm and Dispute.
const (
	confirmBump    = 0.1
	disputePenalty = 0.3
	minConfidence  = 0.05
)

// ConfidenceEntry is one step in a record's confidence history.
type ConfidenceEntry struct {
	Score     float64   `json:"score"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Record is a consolidated natural-language fact with full provenance.
// Records are never edited in place: every change appends to History and
// updates Confidence, Status and UpdatedAt.
type Record struct {
	MemoryID        string            `json:"memory_id"`
	Content         string            `json:"content"`
	SourceSessionID string            `json:"source_session_id"`
	Confidence      float64           `json:"confidence_score"`
	Status          ValidationStatus  `json:"validation_status"`
	History         []ConfidenceEntry `json:"confidence_history"`
	Embedding       []float32         `json:"-"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// ValidationError mirrors the event package's boundary errors for record input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewRecord builds a freshly inferred record with a seeded history entry.
func NewRecord(id, content, sessionID string, confidence float64, now time.Time) (*Record, error) {
	if content == "" {
		return nil, &ValidationError{Field: "content", Message: "must not be empty"}
	}
	if confidence < 0 || confidence > 1 {
		return nil, &ValidationError{Field: "confidence_score", Message: fmt.Sprintf("must be in [0,1], got %g", confidence)}
	}
	return &Record{
		MemoryID:        id,
		Content:         content,
		SourceSessionID: sessionID,
		Confidence:      confidence,
		Status:          StatusAgentInferred,
		History: []ConfidenceEntry{
			{Score: confidence, Reason: "extracted", Timestamp: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Adjust appends a history entry and moves the current score with it.
func (r *Record) Adjust(score float64, reason string, now time.Time) error {
	if score < 0 || score > 1 {
		return &ValidationError{Field: "confidence_score", Message: fmt.Sprintf("must be in [0,1], got %g", score)}
	}
	r.History = append(r.History, ConfidenceEntry{Score: score, Reason: reason, Timestamp: now})
	r.Confidence = score
	r.UpdatedAt = now
	return nil
}

// Confirm records supporting evidence from an explicit user statement.
func (r *Record) Confirm(reason, sessionID string, now time.Time) {
	score := r.Confidence + confirmBump
	if score > 1 {
		score = 1
	}
	_ = r.Adjust(score, reason, now)
	r.Status = StatusUserConfirmed
	r.SourceSessionID = sessionID
}

// Dispute records contradicting evidence. The old history stays intact;
// downstream consumers see the disputed status and the lowered score.
func (r *Record) Dispute(reason string, now time.Time) {
	score := r.Confidence - disputePenalty
	if score < minConfidence {
		score = minConfidence
	}
	_ = r.Adjust(score, reason, now)
	r.Status = StatusDisputed
}

// Validate checks the invariants that must hold for any persisted record.
func (r *Record) Validate() error {
	if r.MemoryID == "" {
		return &ValidationError{Field: "memory_id", Message: "must not be empty"}
	}
	if r.Content == "" {
		return &ValidationError{Field: "content", Message: "must not be empty"}
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return &ValidationError{Field: "confidence_score", Message: fmt.Sprintf("must be in [0,1], got %g", r.Confidence)}
	}
	if len(r.History) == 0 {
		return &ValidationError{Field: "confidence_history", Message: "must not be empty"}
	}
	if last := r.History[len(r.History)-1].Score; last != r.Confidence {
		return &ValidationError{Field: "confidence_score", Message: fmt.Sprintf("score %g does not match last history entry %g", r.Confidence, last)}
	}
	switch r.Status {
	case StatusAgentInferred, StatusUserConfirmed, StatusDisputed:
	default:
		return &ValidationError{Field: "validation_status", Message: fmt.Sprintf("unknown status %q", r.Status)}
	}
	return nil
}
