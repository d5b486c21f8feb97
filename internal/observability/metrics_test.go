package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog/log"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("wrapctl-a", "GET", "/health", 200, 12*time.Millisecond)
	RecordToolRun("transformix", "success", 24*time.Millisecond)

	log.Info().Msg("observability/metrics: registration idempotent and recording paths executed")
}

func TestRecordToolOutputLineCounts(t *testing.T) {
	before := testutil.ToFloat64(toolOutputLines.WithLabelValues("metrics-test"))
	for i := 0; i < 3; i++ {
		RecordToolOutputLine("metrics-test")
	}
	after := testutil.ToFloat64(toolOutputLines.WithLabelValues("metrics-test"))
	if after-before != 3 {
		t.Fatalf("expected 3 counted lines, got %v", after-before)
	}
}
