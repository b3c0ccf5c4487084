package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lqueryfs"

// Metrics counts ctl commands and document mutations.
type Metrics struct {
	reg       *prometheus.Registry
	commands  *prometheus.CounterVec
	mutations prometheus.Counter
	clients   prometheus.Gauge
}

// NewMetrics registers the collectors on reg, or on a fresh registry if
// reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		reg: reg,
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Ctl commands run, by command and result.",
		}, []string{"command", "result"}),
		mutations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Document mutations seen.",
		}),
		clients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mutation_clients",
			Help:      "Connected mutation stream clients.",
		}),
	}
}

// Observe fits runner.WithObserver.
func (m *Metrics) Observe(cmd string, err error) {
	res := "ok"
	if err != nil {
		res = "error"
	}
	if cmd == "" {
		cmd = "none"
	}
	m.commands.WithLabelValues(cmd, res).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}
