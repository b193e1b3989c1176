package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	Ticks.WithLabelValues("photos").Inc()
	if got := testutil.ToFloat64(Ticks.WithLabelValues("photos")); got != 1 {
		t.Fatalf("Ticks = %v, want 1", got)
	}

	Transfers.WithLabelValues("photos", "push", "ok").Inc()
	if got := testutil.ToFloat64(Transfers.WithLabelValues("photos", "push", "ok")); got != 1 {
		t.Fatalf("Transfers = %v, want 1", got)
	}

	LockRepairs.WithLabelValues("photos", "w").Inc()
	if got := testutil.ToFloat64(LockRepairs.WithLabelValues("photos", "w")); got != 1 {
		t.Fatalf("LockRepairs = %v, want 1", got)
	}

	PendingFiles.WithLabelValues("photos").Set(3)
	if got := testutil.ToFloat64(PendingFiles.WithLabelValues("photos")); got != 3 {
		t.Fatalf("PendingFiles = %v, want 3", got)
	}
}
