package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetrics_HandlerServesRegisteredMetrics(t *testing.T) {
	m := New()
	m.ASRIngested.WithLabelValues("EncryptHybrid").Inc()
	m.BatchesClosed.Inc()
	m.PTSByTier.WithLabelValues("Safe").Set(3)

	req := httptest.NewRequest("GET", "/internal/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "pulsar_sentinel_asr_ingested_total") {
		t.Fatal("expected asr_ingested_total metric in output")
	}
	if !strings.Contains(body, "pulsar_sentinel_asr_batches_closed_total") {
		t.Fatal("expected asr_batches_closed_total metric in output")
	}
}
