package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.Assessed("LOW")
	c.Dispatched("silent_monitoring", OutcomeExecuted)
	c.AlertCreated("high")
	c.NotifyFailed("webhook")
	c.AuditFailed()
	c.ObserveSince("telemetry", time.Now())

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 from nil collector, got %d", rec.Code)
	}
}

func TestCountersIncrement(t *testing.T) {
	c := New()
	c.Dispatched("alert_escalation", OutcomeExecuted)
	c.Dispatched("alert_escalation", OutcomeDuplicate)
	c.Dispatched("alert_escalation", OutcomeDuplicate)
	c.AlertCreated("critical")

	if got := testutil.ToFloat64(c.dispatches.WithLabelValues("alert_escalation", OutcomeDuplicate)); got != 2 {
		t.Errorf("duplicate dispatches = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.alertsCreated.WithLabelValues("critical")); got != 1 {
		t.Errorf("alerts created = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := New()
	c.Assessed("CRITICAL")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `journeywatch_assessments_total{level="CRITICAL"} 1`) {
		t.Errorf("metric missing from output:\n%s", rec.Body.String())
	}
}
