package bulk

import (
	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Targets *prometheus.CounterVec
	Batches *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Targets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nearby",
			Subsystem: "bulk",
			Name:      "targets_total",
			Help:      "Batch targets by final outcome kind.",
		}, []string{"kind"}),
		Batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nearby",
			Subsystem: "bulk",
			Name:      "batches_total",
			Help:      "Finished batches, split by whether a ban halted dispatch.",
		}, []string{"halted"}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Targets, m.Batches} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(outcome domain.CallOutcome) {
	if m == nil {
		return
	}
	m.Targets.WithLabelValues(outcome.Kind.String()).Inc()
}

func (m *Metrics) batch(result domain.BatchResult) {
	if m == nil {
		return
	}
	halted := "false"
	if result.Halted {
		halted = "true"
	}
	m.Batches.WithLabelValues(halted).Inc()
}
