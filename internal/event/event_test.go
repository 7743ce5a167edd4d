package event

import (
	"errors"
	"testing"
	"time"
)

func TestEventValidate(t *testing.T) {
	base := Event{Turn: 1, Role: RoleUser, Content: "hello", EventType: TypeCasual, Timestamp: time.Now()}

	t.Run("Valid", func(t *testing.T) {
		if err := base.Validate(); err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
	})

	t.Run("NegativeTurn", func(t *testing.T) {
		e := base
		e.Turn = -1
		var verr *ValidationError
		if err := e.Validate(); !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("UnknownRole", func(t *testing.T) {
		e := base
		e.Role = "system"
		var verr *ValidationError
		if err := e.Validate(); !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if verr.Field != "role" {
			t.Errorf("expected field 'role', got %q", verr.Field)
		}
	})
}

func TestLogAppend(t *testing.T) {
	l := NewLog()

	if err := l.Append(Event{Turn: 0, Role: RoleUser, Content: "goal"}); err != nil {
		t.Fatalf("Append turn 0 failed: %v", err)
	}
	if err := l.Append(Event{Turn: 1, Role: RoleAgent, Content: "ack"}); err != nil {
		t.Fatalf("Append turn 1 failed: %v", err)
	}

	// Non-increasing turn is rejected.
	if err := l.Append(Event{Turn: 1, Role: RoleUser, Content: "dup"}); err == nil {
		t.Fatal("expected error for duplicate turn")
	}
	if err := l.Append(Event{Turn: 0, Role: RoleUser, Content: "rewind"}); err == nil {
		t.Fatal("expected error for decreasing turn")
	}

	if l.Len() != 2 {
		t.Errorf("expected 2 events, got %d", l.Len())
	}
}

func TestLogReplaceKeepsWatermark(t *testing.T) {
	l := NewLog()
	for i := 0; i < 5; i++ {
		if err := l.Append(Event{Turn: i, Role: RoleUser, Content: "x"}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	// Simulate compression: replace with a shorter sequence.
	l.Replace([]Event{{Turn: 0, Role: RoleAgent, Content: "summary", EventType: TypeSummary}})

	if l.Len() != 1 {
		t.Fatalf("expected 1 event after Replace, got %d", l.Len())
	}

	// Appends after Replace must still respect the original watermark.
	if err := l.Append(Event{Turn: 3, Role: RoleUser, Content: "late"}); err == nil {
		t.Fatal("expected error for turn behind watermark")
	}
	if err := l.Append(Event{Turn: 5, Role: RoleUser, Content: "next"}); err != nil {
		t.Fatalf("Append turn 5 failed: %v", err)
	}
}

func TestLogEventsReturnsCopy(t *testing.T) {
	l := NewLog()
	_ = l.Append(Event{Turn: 0, Role: RoleUser, Content: "original"})

	events := l.Events()
	events[0].Content = "mutated"

	if l.Events()[0].Content != "original" {
		t.Error("Events() must return a copy, log was mutated")
	}
}
