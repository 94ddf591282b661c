// Package metrics собирает счётчики чата для Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome значения метки outcome у chat_exchanges_total.
const (
	OutcomeOK      = "ok"
	OutcomeEmpty   = "empty_input"
	OutcomeBusy    = "busy"
	OutcomeStale   = "stale"
	OutcomeTimeout = "timeout"
	OutcomeFailed  = "failed"
)

type Metrics struct {
	registry           *prometheus.Registry
	exchanges          *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec
	modelResets        prometheus.Counter
}

// New регистрирует метрики в собственном реестре. sessions вызывается при
// каждом scrape и отдаёт текущее число сессий; может быть nil.
func New(sessions func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_exchanges_total",
			Help: "Chat submissions by outcome.",
		}, []string{"outcome"}),
		completionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chat_completion_duration_seconds",
			Help:    "Latency of completion service calls.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"model"}),
		modelResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_model_resets_total",
			Help: "History resets caused by a model change.",
		}),
	}

	m.registry.MustRegister(m.exchanges, m.completionDuration, m.modelResets)
	if sessions != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "chat_sessions",
			Help: "Sessions currently held in memory.",
		}, func() float64 { return float64(sessions()) }))
	}
	return m
}

// ObserveExchange учитывает исход отправки. nil-получатель допустим.
func (m *Metrics) ObserveExchange(outcome string) {
	if m == nil {
		return
	}
	m.exchanges.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCompletion(model string, d time.Duration) {
	if m == nil {
		return
	}
	m.completionDuration.WithLabelValues(model).Observe(d.Seconds())
}

func (m *Metrics) ObserveModelReset() {
	if m == nil {
		return
	}
	m.modelResets.Inc()
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
