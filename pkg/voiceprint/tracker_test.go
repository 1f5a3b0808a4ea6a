package voiceprint

import (
	"testing"
)

func TestTrackerInsufficientData(t *testing.T) {
	tr := NewTracker()
	if got := tr.Observe("alice"); got != nil {
		t.Errorf("expected nil for first observation, got %+v", got)
	}
}

func TestTrackerSingleSpeaker(t *testing.T) {
	tr := NewTracker(WithWindow(5), WithMinRatio(0.6))

	var last *Attribution
	for range 5 {
		last = tr.Observe("alice")
	}
	if last == nil {
		t.Fatal("expected non-nil result")
	}
	if last.Status != StatusSingle {
		t.Errorf("expected StatusSingle, got %s", last.Status)
	}
	if last.Speaker != "alice" {
		t.Errorf("expected speaker alice, got %s", last.Speaker)
	}
	if last.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %f", last.Confidence)
	}
	if len(last.Candidates) != 1 || last.Candidates[0] != "alice" {
		t.Errorf("unexpected candidates: %v", last.Candidates)
	}
}

func TestTrackerOverlap(t *testing.T) {
	tr := NewTracker(WithWindow(4), WithMinRatio(0.6))

	tr.Observe("alice")
	tr.Observe("bob")
	tr.Observe("alice")
	result := tr.Observe("bob")

	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result.Status != StatusOverlap {
		t.Errorf("expected StatusOverlap, got %s", result.Status)
	}
	if len(result.Candidates) != 2 || result.Candidates[0] != "alice" {
		t.Errorf("unexpected candidates: %v", result.Candidates)
	}
	if result.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %f", result.Confidence)
	}
}

func TestTrackerUnknown(t *testing.T) {
	tr := NewTracker(WithWindow(5), WithMinRatio(0.6))
	for _, id := range []string{"a", "b", "c", "d"} {
		tr.Observe(id)
	}
	result := tr.Observe("e")
	if result.Status != StatusUnknown {
		t.Errorf("expected StatusUnknown, got %s", result.Status)
	}
	if result.Speaker != "" || len(result.Candidates) != 0 {
		t.Errorf("unknown result names a speaker: %+v", result)
	}
}

func TestTrackerUnverifiedTicks(t *testing.T) {
	tr := NewTracker(WithWindow(5), WithMinRatio(0.6))
	tr.Observe("alice")
	tr.Observe("")
	tr.Observe("")
	tr.Observe("")
	result := tr.Observe("alice")
	if result.Status != StatusUnknown {
		t.Errorf("expected StatusUnknown with mostly unverified ticks, got %s", result.Status)
	}
	if result.Confidence != 0.4 {
		t.Errorf("expected confidence 0.4, got %f", result.Confidence)
	}
}

func TestTrackerSlidingWindow(t *testing.T) {
	tr := NewTracker(WithWindow(3), WithMinRatio(0.6))
	tr.Observe("alice")
	tr.Observe("alice")
	tr.Observe("alice")
	tr.Observe("bob")
	result := tr.Observe("bob")
	if result.Status != StatusSingle || result.Speaker != "bob" {
		t.Errorf("expected single bob after window slides, got %+v", result)
	}
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker()
	tr.Observe("alice")
	tr.Observe("alice")
	tr.Reset()
	if got := tr.Observe("alice"); got != nil {
		t.Errorf("expected nil after reset, got %+v", got)
	}
}
