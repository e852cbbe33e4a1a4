package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Reset collectors for testing purposes.
	importDocumentsTotal = nil
	importMatchesTotal = nil
	importDurationSeconds = nil

	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if importDocumentsTotal == nil || importMatchesTotal == nil || importDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	ObserveDocument("imported", "html", 10, 5, 250*time.Millisecond)
	if val := testutil.ToFloat64(importDocumentsTotal.WithLabelValues("imported")); val != 1 {
		t.Errorf("Expected importDocumentsTotal{imported} to be 1, got %f", val)
	}
	if val := testutil.ToFloat64(importMatchesTotal); val != 10 {
		t.Errorf("Expected importMatchesTotal to be 10, got %f", val)
	}

	ObserveSyncRun("partial_failure")
	if val := testutil.ToFloat64(syncRunsTotal.WithLabelValues("partial_failure")); val != 1 {
		t.Errorf("Expected syncRunsTotal{partial_failure} to be 1, got %f", val)
	}
}
