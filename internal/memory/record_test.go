package memory

import (
	"errors"
	"testing"
	"time"
)

func TestNewRecord(t *testing.T) {
	now := time.Now()

	t.Run("Valid", func(t *testing.T) {
		r, err := NewRecord("mem-1", "User prefers Python", "sess-1", 0.8, now)
		if err != nil {
			t.Fatalf("NewRecord failed: %v", err)
		}
		if r.Status != StatusAgentInferred {
			t.Errorf("expected agent_inferred, got %s", r.Status)
		}
		if len(r.History) != 1 || r.History[0].Score != 0.8 {
			t.Errorf("expected seeded history entry with score 0.8, got %+v", r.History)
		}
		if err := r.Validate(); err != nil {
			t.Errorf("fresh record failed Validate: %v", err)
		}
	})

	t.Run("OutOfRangeConfidence", func(t *testing.T) {
		var verr *ValidationError
		if _, err := NewRecord("mem-2", "fact", "sess-1", 1.2, now); !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, err := NewRecord("mem-3", "fact", "sess-1", -0.1, now); !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("EmptyContent", func(t *testing.T) {
		if _, err := NewRecord("mem-4", "", "sess-1", 0.5, now); err == nil {
			t.Fatal("expected error for empty content")
		}
	})
}

func TestConfidenceHistoryInvariant(t *testing.T) {
	now := time.Now()
	r, _ := NewRecord("mem-1", "User prefers Python", "sess-1", 0.8, now)

	r.Confirm("user restated preference", "sess-2", now.Add(time.Minute))
	r.Confirm("confirmed again", "sess-3", now.Add(2*time.Minute))
	r.Dispute("user now prefers TypeScript", now.Add(3*time.Minute))

	if len(r.History) != 4 {
		t.Fatalf("expected 4 history entries, got %d", len(r.History))
	}
	// Score always equals the last history entry.
	if r.Confidence != r.History[len(r.History)-1].Score {
		t.Errorf("confidence %g != last history score %g", r.Confidence, r.History[len(r.History)-1].Score)
	}
	if err := r.Validate(); err != nil {
		t.Errorf("Validate failed after transitions: %v", err)
	}
}

func TestConfirmCapsAtOne(t *testing.T) {
	now := time.Now()
	r, _ := NewRecord("mem-1", "fact", "sess-1", 0.95, now)
	r.Confirm("confirmed", "sess-2", now)

	if r.Confidence != 1.0 {
		t.Errorf("expected confidence capped at 1.0, got %g", r.Confidence)
	}
	if r.Status != StatusUserConfirmed {
		t.Errorf("expected user_confirmed, got %s", r.Status)
	}
}

func TestDisputeFloors(t *testing.T) {
	now := time.Now()
	r, _ := NewRecord("mem-1", "fact", "sess-1", 0.2, now)
	r.Dispute("contradicted", now)

	if r.Confidence != 0.05 {
		t.Errorf("expected confidence floored at 0.05, got %g", r.Confidence)
	}
	if r.Status != StatusDisputed {
		t.Errorf("expected disputed, got %s", r.Status)
	}
	// The pre-dispute history entry is preserved.
	if r.History[0].Score != 0.2 {
		t.Errorf("original history entry lost: %+v", r.History)
	}
}

func TestAudit(t *testing.T) {
	now := time.Now()

	t.Run("IncreasingTrend", func(t *testing.T) {
		r, _ := NewRecord("mem-1", "fact", "sess-1", 0.5, now)
		_ = r.Adjust(0.6, "confirm", now)
		_ = r.Adjust(0.7, "confirm", now)

		a := r.Audit()
		if a.ConfidenceTrend != TrendIncreasing {
			t.Errorf("expected increasing, got %s", a.ConfidenceTrend)
		}
		if a.EffectiveConfidence != 0.7 {
			t.Errorf("expected effective 0.7, got %g", a.EffectiveConfidence)
		}
	})

	t.Run("DecreasingTrend", func(t *testing.T) {
		r, _ := NewRecord("mem-1", "fact", "sess-1", 0.9, now)
		_ = r.Adjust(0.7, "dispute", now)
		_ = r.Adjust(0.5, "dispute", now)

		if got := r.Trend(); got != TrendDecreasing {
			t.Errorf("expected decreasing, got %s", got)
		}
	})

	t.Run("StableWithinDeadBand", func(t *testing.T) {
		r, _ := NewRecord("mem-1", "fact", "sess-1", 0.70, now)
		_ = r.Adjust(0.72, "noise", now)

		if got := r.Trend(); got != TrendStable {
			t.Errorf("expected stable, got %s", got)
		}
	})

	t.Run("DisputedDiscount", func(t *testing.T) {
		r, _ := NewRecord("mem-1", "fact", "sess-1", 0.8, now)
		r.Status = StatusDisputed

		if got := r.EffectiveConfidence(); got != 0.4 {
			t.Errorf("expected discounted 0.4, got %g", got)
		}
	})
}

func TestValidateCatchesDrift(t *testing.T) {
	now := time.Now()
	r, _ := NewRecord("mem-1", "fact", "sess-1", 0.8, now)

	// Simulate a corrupted record where score and history disagree.
	r.Confidence = 0.3
	if err := r.Validate(); err == nil {
		t.Fatal("expected Validate to reject score/history mismatch")
	}
}
