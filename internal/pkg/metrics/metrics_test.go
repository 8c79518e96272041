package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitMetrics_Idempotent(t *testing.T) {
	InitMetrics()
	InitMetrics()

	TaskOperationsTotal.WithLabelValues("create", "ok").Inc()
	if got := testutil.ToFloat64(TaskOperationsTotal.WithLabelValues("create", "ok")); got < 1 {
		t.Fatalf("expected counter to be incremented, got %v", got)
	}
}
