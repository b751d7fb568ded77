package signup

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "signup"

// Metrics records workflow outcomes and step latencies. A nil *Metrics
// records nothing.
type Metrics struct {
	outcomes *prometheus.CounterVec
	steps    *prometheus.HistogramVec
	limited  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "workflow_outcomes_total",
			Help:      "Terminal outcomes of form submission workflows.",
		}, []string{"flow", "outcome"}),
		steps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of each backend call made by a workflow.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"flow", "step", "result"}),
		limited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "submissions_rate_limited_total",
			Help:      "Submissions rejected by the per client rate limit.",
		}, []string{"flow"}),
	}

	if reg == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{m.outcomes, m.steps, m.limited} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// MustNewMetrics panics if registration fails
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	m, err := NewMetrics(reg)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Metrics) ObserveOutcome(flow, outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(flow, outcome).Inc()
}

func (m *Metrics) ObserveStep(flow, step string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.steps.WithLabelValues(flow, step, result).Observe(d.Seconds())
}

func (m *Metrics) ObserveRateLimited(flow string) {
	if m == nil {
		return
	}
	m.limited.WithLabelValues(flow).Inc()
}
