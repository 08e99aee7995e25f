package telemetry

import (
	"strconv"

	"github.com/mualim/api/internal/generation"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus collectors for the generation pipeline.
type Metrics struct {
	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	generations     *prometheus.CounterVec
	noveltyRetries  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mualim",
			Name:      "model_attempts_total",
			Help:      "Model attempts by model, content kind, outcome and upstream status.",
		}, []string{"model", "kind", "outcome", "status"}),
		attemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mualim",
			Name:      "model_attempt_duration_seconds",
			Help:      "Wall time of one model attempt including repair.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"model", "outcome"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mualim",
			Name:      "generations_total",
			Help:      "Generation requests by content kind and result.",
		}, []string{"kind", "result"}),
		noveltyRetries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mualim",
			Name:      "novelty_retries",
			Help:      "Regenerations caused by duplicate results per request.",
			Buckets:   []float64{0, 1, 2, 3, 5},
		}),
	}
	reg.MustRegister(m.attempts, m.attemptDuration, m.generations, m.noveltyRetries)
	return m
}

// ObserveAttempt implements generation.Observer.
func (m *Metrics) ObserveAttempt(kind generation.Kind, a generation.Attempt) {
	status := ""
	if a.Status > 0 {
		status = strconv.Itoa(a.Status)
	}
	m.attempts.WithLabelValues(a.Model, string(kind), a.Outcome, status).Inc()
	m.attemptDuration.WithLabelValues(a.Model, a.Outcome).Observe(a.Elapsed.Seconds())
}

// Generation result labels.
const (
	ResultSuccess   = "success"
	ResultDuplicate = "duplicate"
	ResultSoftFail  = "incomplete"
	ResultInvalid   = "invalid"
)

// ObserveGeneration counts one finished request.
func (m *Metrics) ObserveGeneration(kind generation.Kind, result string, noveltyRetries int) {
	m.generations.WithLabelValues(string(kind), result).Inc()
	if result == ResultSuccess || result == ResultDuplicate {
		m.noveltyRetries.Observe(float64(noveltyRetries))
	}
}
