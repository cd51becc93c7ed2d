package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCommand(t *testing.T) {
	before := testutil.ToFloat64(commands.WithLabelValues("StatusQuery", OutcomeOK))
	RecordCommand("StatusQuery", OutcomeOK)
	RecordCommand("StatusQuery", OutcomeOK)
	if got := testutil.ToFloat64(commands.WithLabelValues("StatusQuery", OutcomeOK)); got != before+2 {
		t.Errorf("commands_total = %v, want %v", got, before+2)
	}
}

func TestSessionGauge(t *testing.T) {
	before := testutil.ToFloat64(sessionsActive)
	SessionOpened()
	SessionOpened()
	SessionClosed()
	if got := testutil.ToFloat64(sessionsActive); got != before+1 {
		t.Errorf("sessions_active = %v, want %v", got, before+1)
	}
	SessionClosed()
}

func TestRecordMissed(t *testing.T) {
	before := testutil.ToFloat64(busMissed)
	RecordMissed(7)
	if got := testutil.ToFloat64(busMissed); got != before+7 {
		t.Errorf("bus_missed_total = %v, want %v", got, before+7)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	SetUpstreamState(2)
	RecordHTTPRequest(http.MethodGet, "/api/health", http.StatusOK, 3*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{
		"admin_api_upstream_state 2",
		"admin_api_http_requests_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("exposition missing %q", name)
		}
	}
}
