package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/contextcore/recall/internal/event"
)

var sampleEvents = []event.Event{
	{Turn: 1, Role: event.RoleUser, Content: "I moved to Berlin last month"},
	{Turn: 2, Role: event.RoleAgent, Content: "Noted, welcome to Berlin"},
}

func TestCollaborator_Summarize(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		c := NewCollaborator(NewStubProvider("User relocated to Berlin and asked about local transit."), time.Second)

		summary, err := c.Summarize(context.Background(), sampleEvents)
		if err != nil {
			t.Fatalf("Summarize failed: %v", err)
		}
		if summary == "" {
			t.Fatal("expected non-empty summary")
		}
	})

	t.Run("EmptyOutputIsFailure", func(t *testing.T) {
		c := NewCollaborator(NewStubProvider("   "), time.Second)

		_, err := c.Summarize(context.Background(), sampleEvents)
		var cerr *CollaboratorError
		if !errors.As(err, &cerr) {
			t.Fatalf("expected CollaboratorError, got %v", err)
		}
		if cerr.Timeout {
			t.Error("empty output should not be reported as a timeout")
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		p := NewStubProvider("late")
		p.Delay = 200 * time.Millisecond
		c := NewCollaborator(p, 20*time.Millisecond)

		_, err := c.Summarize(context.Background(), sampleEvents)
		var cerr *CollaboratorError
		if !errors.As(err, &cerr) {
			t.Fatalf("expected CollaboratorError, got %v", err)
		}
		if !cerr.Timeout {
			t.Error("expected timeout flag set")
		}
	})
}

func TestCollaborator_ExtractFacts(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		c := NewCollaborator(NewStubProvider(`[{"content":"User lives in Berlin","confidence":0.9}]`), time.Second)

		facts, err := c.ExtractFacts(context.Background(), sampleEvents)
		if err != nil {
			t.Fatalf("ExtractFacts failed: %v", err)
		}
		if len(facts) != 1 || facts[0].Confidence != 0.9 {
			t.Fatalf("unexpected facts: %+v", facts)
		}
	})

	t.Run("CodeFenced", func(t *testing.T) {
		c := NewCollaborator(NewStubProvider("```json\n[{\"content\":\"User lives in Berlin\",\"confidence\":0.8}]\n```"), time.Second)

		facts, err := c.ExtractFacts(context.Background(), sampleEvents)
		if err != nil {
			t.Fatalf("ExtractFacts failed on fenced output: %v", err)
		}
		if len(facts) != 1 {
			t.Fatalf("expected 1 fact, got %d", len(facts))
		}
	})

	t.Run("EmptyListIsValid", func(t *testing.T) {
		c := NewCollaborator(NewStubProvider(`[]`), time.Second)

		facts, err := c.ExtractFacts(context.Background(), sampleEvents)
		if err != nil {
			t.Fatalf("ExtractFacts failed: %v", err)
		}
		if len(facts) != 0 {
			t.Fatalf("expected no facts, got %d", len(facts))
		}
	})

	t.Run("OutOfRangeConfidence", func(t *testing.T) {
		c := NewCollaborator(NewStubProvider(`[{"content":"x","confidence":1.5}]`), time.Second)

		if _, err := c.ExtractFacts(context.Background(), sampleEvents); err == nil {
			t.Fatal("expected error for out-of-range confidence")
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		c := NewCollaborator(NewStubProvider(`not json at all`), time.Second)

		if _, err := c.ExtractFacts(context.Background(), sampleEvents); err == nil {
			t.Fatal("expected error for malformed output")
		}
	})
}

func TestCollaborator_Compare(t *testing.T) {
	cases := []struct {
		raw  string
		want Relation
	}{
		{"contradicts", RelationContradicts},
		{" Restates \n", RelationRestates},
		{"refines", RelationRefines},
		{"unrelated", RelationUnrelated},
	}

	for _, tc := range cases {
		c := NewCollaborator(NewStubProvider(tc.raw), time.Second)
		got, err := c.Compare(context.Background(), "a", "b")
		if err != nil {
			t.Fatalf("Compare(%q) failed: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Errorf("Compare(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}

	t.Run("Unrecognized", func(t *testing.T) {
		c := NewCollaborator(NewStubProvider("maybe?"), time.Second)
		if _, err := c.Compare(context.Background(), "a", "b"); err == nil {
			t.Fatal("expected error for unrecognized judgment")
		}
	})
}

func TestStubEmbedDeterministic(t *testing.T) {
	p := NewStubProvider()

	a, _ := p.Embed(context.Background(), "User prefers Python")
	b, _ := p.Embed(context.Background(), "User prefers Python")

	for i := range a {
		if a[i] != b[i] {
			t.Fatal("stub embeddings must be deterministic")
		}
	}
}
