// Package event defines the append-only conversation record shared by the
// session and consolidation layers.
package event

import (
	"fmt"
	"time"
)

// Role identifies who produced an event.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleTool  Role = "tool"
)

// Well-known event types. EventType is free-form; these are the values the
// classifier and compressor care about.
const (
	TypeObjective      = "objective"
	TypeConstraint     = "constraint"
	TypeCorrection     = "correction"
	TypeAuthCheckpoint = "auth_checkpoint"
	TypeCasual         = "casual"
	TypeSummary        = "compressed_summary"
	TypeMemoryContext  = "memory_context"
)

// Event is one turn or tool interaction. Events are immutable once appended;
// corrections arrive as new events, never edits.
type Event struct {
	Turn      int       `json:"turn"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`

	// Protected is derived at append time and cached here so compression
	// cycles do not re-run classification.
	Protected bool `json:"is_protected"`
}

// ValidationError reports malformed input rejected at the library boundary.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Validate checks role and turn shape. Turn monotonicity is enforced by Log.
func (e Event) Validate() error {
	if e.Turn < 0 {
		return &ValidationError{Field: "turn", Message: fmt.Sprintf("must be non-negative, got %d", e.Turn)}
	}
	switch e.Role {
	case RoleUser, RoleAgent, RoleTool:
	default:
		return &ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", e.Role)}
	}
	return nil
}
