package dispatch

import (
	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Outcomes       *prometheus.CounterVec
	Retries        prometheus.Counter
	ProxyExhausted prometheus.Counter
	Discarded      prometheus.Counter
	Latency        prometheus.Histogram
}

// NewMetrics builds the dispatcher collectors and registers them when reg is not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nearby",
			Subsystem: "dispatch",
			Name:      "outcomes_total",
			Help:      "Transport attempts by classified outcome.",
		}, []string{"kind", "class"}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nearby",
			Subsystem: "dispatch",
			Name:      "retries_total",
			Help:      "Retries issued for idempotent calls.",
		}),
		ProxyExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nearby",
			Subsystem: "dispatch",
			Name:      "proxy_exhausted_total",
			Help:      "Selections that found no eligible proxy endpoint.",
		}),
		Discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nearby",
			Subsystem: "dispatch",
			Name:      "discarded_total",
			Help:      "Outcomes dropped because the session changed during the call.",
		}),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nearby",
			Subsystem: "dispatch",
			Name:      "attempt_duration_seconds",
			Help:      "Wall time of single transport attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Outcomes, m.Retries, m.ProxyExhausted, m.Discarded, m.Latency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(outcome domain.CallOutcome, seconds float64) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome.Kind.String(), outcome.Class.String()).Inc()
	m.Latency.Observe(seconds)
}

func (m *Metrics) retry() {
	if m != nil {
		m.Retries.Inc()
	}
}

func (m *Metrics) exhausted() {
	if m != nil {
		m.ProxyExhausted.Inc()
	}
}

func (m *Metrics) discarded() {
	if m != nil {
		m.Discarded.Inc()
	}
}
