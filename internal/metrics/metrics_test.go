package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New()
	m.ObserveDelivery("push", "sent")
	m.ObserveDelivery("push", "sent")
	m.ObserveDelivery("push", "failed")
	m.ObserveFanout(3, 20*time.Millisecond)
	m.ObserveRateLimited()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `webping_deliveries_total{channel="push",status="sent"} 2`)
	assert.Contains(t, body, `webping_deliveries_total{channel="push",status="failed"} 1`)
	assert.Contains(t, body, "webping_rate_limited_total 1")
	assert.Contains(t, body, "webping_fanout_duration_seconds_count 1")
	assert.Contains(t, body, "webping_fanout_targets_sum 3")
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDelivery("push", "sent")
		m.ObserveFanout(1, time.Second)
		m.ObserveRateLimited()
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
