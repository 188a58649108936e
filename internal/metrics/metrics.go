// Package metrics holds the Prometheus collectors for deliveries and fan-outs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "webping"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	deliveries     *prometheus.CounterVec
	fanoutDuration prometheus.Histogram
	fanoutTargets  prometheus.Histogram
	rateLimited    prometheus.Counter
	gatherer       prometheus.Gatherer
}

// New registers the collectors on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Delivery attempts by channel and status.",
		}, []string{"channel", "status"}),
		fanoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fanout_duration_seconds",
			Help:      "Time to deliver one send request to every subscription.",
			Buckets:   prometheus.DefBuckets,
		}),
		fanoutTargets: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fanout_targets",
			Help:      "Subscriptions per send request.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50},
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Send requests rejected by the per-topic rate limit.",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.deliveries, m.fanoutDuration, m.fanoutTargets, m.rateLimited)

	return m
}

func (m *Metrics) ObserveDelivery(channel, status string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(channel, status).Inc()
}

func (m *Metrics) ObserveFanout(targets int, took time.Duration) {
	if m == nil {
		return
	}
	m.fanoutTargets.Observe(float64(targets))
	m.fanoutDuration.Observe(took.Seconds())
}

func (m *Metrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
