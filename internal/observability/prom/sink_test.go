package prom

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_CountsKnownMetrics(t *testing.T) {
	s := NewSink("estate_portal")

	s.Count("session.transition", 1, map[string]string{"op": "login", "result": "success", "category": "user"})
	s.Count("session.transition", 2, map[string]string{"op": "login", "result": "success", "category": "user"})
	s.Count("unknown.metric", 1, nil)

	got := testutil.ToFloat64(s.counters["session.transition"].vec.WithLabelValues("login", "user", "success", ""))
	assert.InDelta(t, 3.0, got, 0.0001)
}

func TestSink_GaugeAndTiming(t *testing.T) {
	s := NewSink("estate_portal")

	s.Gauge("session.authenticated", 1, map[string]string{"category": "client"})
	s.Timing("dashboard.fetch_duration", 50*time.Millisecond, map[string]string{"role": "admin", "result": "success"})

	assert.InDelta(t, 1.0, testutil.ToFloat64(s.gauges["session.authenticated"].vec.WithLabelValues("client")), 0.0001)
	assert.Equal(t, 1, testutil.CollectAndCount(s.histograms["dashboard.fetch_duration"].vec))
}

func TestSink_Handler(t *testing.T) {
	s := NewSink("estate_portal")
	s.Count("guard.decision", 1, map[string]string{"decision": "forbidden_redirect"})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `estate_portal_guard_decisions_total{decision="forbidden_redirect"} 1`))
}
