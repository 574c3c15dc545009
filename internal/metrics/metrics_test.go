package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if rewriteTasksTotal == nil || rewriteDurationSeconds == nil ||
		activeRewrites == nil || generationAttemptsTotal == nil ||
		allocatorAssignmentsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	ObserveTask("completed", 2*time.Second)
	if val := testutil.ToFloat64(rewriteTasksTotal.WithLabelValues("completed")); val != 1 {
		t.Errorf("expected tasks counter to be 1, got %f", val)
	}

	ObserveAssignment("news.example.com")
	if val := testutil.ToFloat64(allocatorAssignmentsTotal.WithLabelValues("news.example.com")); val != 1 {
		t.Errorf("expected assignment counter to be 1, got %f", val)
	}

	IncActiveRewrites()
	IncActiveRewrites()
	DecActiveRewrites()
	if val := testutil.ToFloat64(activeRewrites); val != 1 {
		t.Errorf("expected active gauge to be 1, got %f", val)
	}
}
