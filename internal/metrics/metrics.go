package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps Prometheus collectors for qlik-sentinel.
type Metrics struct {
	registry                 *prometheus.Registry
	cycleDurationSeconds     prometheus.Histogram
	failingTasks             *prometheus.GaugeVec
	notificationsTotal       *prometheus.CounterVec
	suppressedTotal          *prometheus.CounterVec
	recoveredTotal           *prometheus.CounterVec
	sourceErrorsTotal        prometheus.Counter
	lastSuccessfulCycleGauge prometheus.Gauge
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		cycleDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "qlik_sentinel_cycle_duration_seconds",
			Help:    "Duration of poll-decide-notify cycles in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		failingTasks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "qlik_sentinel_failing_tasks",
			Help: "Failing task observations in the latest cycle by site.",
		}, []string{"site"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qlik_sentinel_notifications_total",
			Help: "Total failure notifications selected for delivery by site.",
		}, []string{"site"}),
		suppressedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qlik_sentinel_suppressed_total",
			Help: "Total repeat failures suppressed inside the reminder window by site.",
		}, []string{"site"}),
		recoveredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qlik_sentinel_recovered_total",
			Help: "Total tasks reported recovered by site.",
		}, []string{"site"}),
		sourceErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qlik_sentinel_source_errors_total",
			Help: "Total QRS API errors after retries.",
		}),
		lastSuccessfulCycleGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "qlik_sentinel_last_successful_cycle_timestamp",
			Help: "Unix timestamp of the last successful cycle.",
		}),
	}

	registry.MustRegister(
		m.cycleDurationSeconds,
		m.failingTasks,
		m.notificationsTotal,
		m.suppressedTotal,
		m.recoveredTotal,
		m.sourceErrorsTotal,
		m.lastSuccessfulCycleGauge,
	)

	return m
}

// Handler returns a Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycleDuration records the duration of a completed cycle.
func (m *Metrics) ObserveCycleDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.cycleDurationSeconds.Observe(duration.Seconds())
}

// SetFailingTasks sets the failing-task gauge for the given site.
func (m *Metrics) SetFailingTasks(site string, value int) {
	if m == nil {
		return
	}
	m.failingTasks.WithLabelValues(site).Set(float64(value))
}

// AddNotifications increments the notification counter for the given site.
func (m *Metrics) AddNotifications(site string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.notificationsTotal.WithLabelValues(site).Add(float64(count))
}

// AddSuppressed increments the suppression counter for the given site.
func (m *Metrics) AddSuppressed(site string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.suppressedTotal.WithLabelValues(site).Add(float64(count))
}

// AddRecovered increments the recovered counter for the given site.
func (m *Metrics) AddRecovered(site string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.recoveredTotal.WithLabelValues(site).Add(float64(count))
}

// IncSourceErrors increments the QRS API error counter.
func (m *Metrics) IncSourceErrors() {
	if m == nil {
		return
	}
	m.sourceErrorsTotal.Inc()
}

// SetLastSuccessfulCycleTimestamp sets the last successful cycle time.
func (m *Metrics) SetLastSuccessfulCycleTimestamp(t time.Time) {
	if m == nil {
		return
	}
	m.lastSuccessfulCycleGauge.Set(float64(t.Unix()))
}
