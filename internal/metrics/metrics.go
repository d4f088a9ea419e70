package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "driveassist"

// Sink names used for the write_failures_total label.
const (
	SinkDataset   = "dataset"
	SinkHistory   = "history"
	SinkAdvice    = "advice"
	SinkBroadcast = "broadcast"
)

// Loop holds the counters updated by the loop controller.
type Loop struct {
	Cycles        *prometheus.CounterVec
	ReadFailures  prometheus.Counter
	WriteFailures *prometheus.CounterVec
	Labels        *prometheus.CounterVec
	LastCycle     prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewLoop registers the loop metrics with a fresh registry.
func NewLoop() *Loop {
	reg := prometheus.NewRegistry()

	m := &Loop{
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Cycles run, by outcome (ok, read_failed, write_failed).",
		}, []string{"outcome"}),
		ReadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_failures_total",
			Help:      "Snapshot reads that failed.",
		}),
		WriteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_failures_total",
			Help:      "Failed writes, by sink.",
		}, []string{"sink"}),
		Labels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "labels_total",
			Help:      "Classified snapshots, by label.",
		}, []string{"label"}),
		LastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time of the last completed cycle.",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.Cycles,
		m.ReadFailures,
		m.WriteFailures,
		m.Labels,
		m.LastCycle,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Loop) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
