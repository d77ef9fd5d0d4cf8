package stage

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors shared by every stage of a pipeline. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	eventsIn  *prometheus.CounterVec
	eventsOut *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	demand    *prometheus.CounterVec
}

// NewMetrics creates the stage collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tickbar",
			Subsystem: "stage",
			Name:      name,
			Help:      help,
		}, []string{"stage"})
	}

	m := &Metrics{
		eventsIn:  counter("events_in_total", "Events received from producers."),
		eventsOut: counter("events_out_total", "Events delivered to consumers."),
		dropped:   counter("events_dropped_total", "Events discarded by buffer overflow or cancellation."),
		demand:    counter("demand_requested_total", "Events requested from producers."),
	}

	for _, c := range []prometheus.Collector{m.eventsIn, m.eventsOut, m.dropped, m.demand} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) addIn(stage string, n int) {
	if m != nil && n > 0 {
		m.eventsIn.WithLabelValues(stage).Add(float64(n))
	}
}

func (m *Metrics) addOut(stage string, n int) {
	if m != nil && n > 0 {
		m.eventsOut.WithLabelValues(stage).Add(float64(n))
	}
}

func (m *Metrics) addDropped(stage string, n int) {
	if m != nil && n > 0 {
		m.dropped.WithLabelValues(stage).Add(float64(n))
	}
}

func (m *Metrics) addDemand(stage string, n int) {
	if m != nil && n > 0 {
		m.demand.WithLabelValues(stage).Add(float64(n))
	}
}
