package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/tickets/:id/assume", "POST", 200, 15*time.Millisecond)
	m.RecordRequest("/tickets/:id/assume", "POST", 200, 5*time.Millisecond)
	m.RecordError("/tickets/:id/assume", "POST", "INVALID_STATE_TRANSITION")
	m.RecordTransition("assume", "ok")
	m.RecordSweep("auto_close", 3)
	m.RecordSweep("auto_close", 0)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requests.WithLabelValues("POST", "/tickets/:id/assume", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.errors.WithLabelValues("POST", "/tickets/:id/assume", "INVALID_STATE_TRANSITION")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.transitions.WithLabelValues("assume", "ok")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.sweepRemoved.WithLabelValues("auto_close")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "NOT_FOUND")
		m.RecordTransition("assume", "ok")
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.RecordTransition("resolve", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `helpdesk_ticket_transitions_total{outcome="ok",transition="resolve"} 1`)
}
