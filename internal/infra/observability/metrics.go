package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/technicia/chat-bfa/internal/domain"
)

// Outcome labels shared by the upload and query counters.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds all Prometheus metrics for the chat BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	backendDuration *prometheus.HistogramVec
	backendErrors   *prometheus.CounterVec
	uploads         *prometheus.CounterVec
	queries         *prometheus.CounterVec
	activeSessions  prometheus.Gauge
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		backendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "technicia_backend_request_duration_seconds",
				Help:    "Duration of calls to the TechnicIA backend by operation.",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
		backendErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "technicia_backend_errors_total",
				Help: "Total failed calls to the TechnicIA backend.",
			},
			[]string{"operation"},
		),
		uploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "technicia_uploads_total",
				Help: "Document uploads by outcome.",
			},
			[]string{"outcome"},
		),
		queries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "technicia_queries_total",
				Help: "Chat queries by outcome.",
			},
			[]string{"outcome"},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "technicia_active_sessions",
				Help: "Chat sessions currently held in memory.",
			},
		),
	}
}

// RecordBackendCall records the duration of a backend call and counts failures.
func (m *Metrics) RecordBackendCall(operation string, d time.Duration, err error) {
	m.backendDuration.WithLabelValues(operation).Observe(d.Seconds())
	if err != nil {
		m.backendErrors.WithLabelValues(operation).Inc()
	}
}

// IncrUpload counts a finished upload.
func (m *Metrics) IncrUpload(outcome string) {
	m.uploads.WithLabelValues(outcome).Inc()
}

// IncrQuery counts a finished query.
func (m *Metrics) IncrQuery(outcome string) {
	m.queries.WithLabelValues(outcome).Inc()
}

// SessionOpened increments the active sessions gauge.
func (m *Metrics) SessionOpened() {
	m.activeSessions.Inc()
}

// SessionClosed decrements the active sessions gauge.
func (m *Metrics) SessionClosed() {
	m.activeSessions.Dec()
}

// Snapshot returns the counters behind GET /v1/metrics/chat.
func (m *Metrics) Snapshot() *domain.ChatMetrics {
	answered := counterValue(m.queries, OutcomeSuccess)
	failed := counterValue(m.queries, OutcomeError)

	errorRate := float64(0)
	if total := answered + failed; total > 0 {
		errorRate = failed / total
	}

	return &domain.ChatMetrics{
		ActiveSessions:  int64(gaugeValue(m.activeSessions)),
		UploadsSuccess:  int64(counterValue(m.uploads, OutcomeSuccess)),
		UploadsFailed:   int64(counterValue(m.uploads, OutcomeError)),
		QueriesAnswered: int64(answered),
		QueriesFailed:   int64(failed),
		QueryErrorRate:  errorRate,
		BackendErrors:   int64(counterValue(m.backendErrors, "upload") + counterValue(m.backendErrors, "query")),
		Period:          "all_time",
	}
}

// counterValue extracts the current float64 value from a CounterVec for a given label.
func counterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func gaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		return 0
	}
	if m.Gauge != nil && m.Gauge.Value != nil {
		return *m.Gauge.Value
	}
	return 0
}
