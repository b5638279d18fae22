package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveDelivery("message", "handled")
	m.ObserveRedelivery("message")
	m.ObserveCompletion("openai", 300*time.Millisecond, nil)
	m.ObserveTask("ledger", errors.New("boom"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)
	for _, want := range []string{
		`mooai_deliveries_total{kind="message",outcome="handled"} 1`,
		`mooai_redeliveries_total{kind="message"} 1`,
		`mooai_completion_duration_seconds_count{outcome="ok",provider="openai"} 1`,
		`mooai_background_tasks_total{name="ledger",outcome="error"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveDelivery("message", "handled")
	m.ObserveCompletion("openai", time.Second, nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 from nil metrics, got %d", rec.Code)
	}
}
