package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestObserveRequestAndExposition(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "/api/v1/clients", http.StatusOK, 20*time.Millisecond)
	m.SaleConfirmed()
	m.Restored(false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, line := range []string{
		`http_requests_total{method="GET",path="/api/v1/clients",status="200"} 1`,
		`ledger_sales_confirmed_total 1`,
		`ledger_restores_total{result="error"} 1`,
		`http_request_duration_seconds_count{path="/api/v1/clients"} 1`,
	} {
		if !strings.Contains(body, line) {
			t.Fatalf("expected %q in exposition:\n%s", line, body)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	m.SaleConfirmed()
	m.Restored(true)
	m.NumberingFailed()
}
