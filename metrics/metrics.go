// Package metrics defines the bot's observability counters.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Observer interface {
	Observe(val float64, labels ...string)

	// for now we will tightly couple to the prometheus collector type
	// the go otel metrics sdk also has a prometheus adapter that implements this interface.
	prometheus.Collector
}

type Metrics struct {
	EventCount      Observer
	CommandCount    Observer
	EmoteCount      Observer
	TransportErrors Observer
	PersistErrors   Observer
}

func (m Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.EventCount,
		m.CommandCount,
		m.EmoteCount,
		m.TransportErrors,
		m.PersistErrors,
	}
}

// Discard returns a Metrics that records nothing.
func Discard() *Metrics {
	return &Metrics{
		EventCount:      nop{},
		CommandCount:    nop{},
		EmoteCount:      nop{},
		TransportErrors: nop{},
		PersistErrors:   nop{},
	}
}

type nop struct{}

func (nop) Observe(val float64, labels ...string) {}
func (nop) Describe(chan<- *prometheus.Desc)      {}
func (nop) Collect(chan<- prometheus.Metric)      {}
