package testutil

import (
	"testing"
	"time"
)

func TestHooksRecorder_CapturesSignals(t *testing.T) {
	h := &HooksRecorder{}
	h.ObserveOperation("review.submit", "conflict", 10*time.Millisecond)
	h.ObserveOperation("review.submit", "success", 5*time.Millisecond)
	h.IncConflict("review.submit")
	h.IncRetry("review.submit")

	if len(h.Operations) != 2 {
		t.Fatalf("expected 2 op events, got %d", len(h.Operations))
	}
	if got := h.LastStatus("review.submit"); got != "success" {
		t.Fatalf("LastStatus: want=success got=%s", got)
	}
	if got := h.LastStatus("card.create"); got != "" {
		t.Fatalf("LastStatus(unknown): want empty got=%s", got)
	}
	if len(h.Conflicts) != 1 || len(h.Retries) != 1 {
		t.Fatalf("unexpected conflicts=%v retries=%v", h.Conflicts, h.Retries)
	}
}
