package web

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry   *prometheus.Registry
	ingests    *prometheus.CounterVec
	queries    *prometheus.CounterVec
	sinkErrors *prometheus.CounterVec
	history    prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		ingests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "botboard",
			Name:      "ingest_requests_total",
			Help:      "Ingest requests by result.",
		}, []string{"result"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "botboard",
			Name:      "query_requests_total",
			Help:      "Dashboard data queries by result.",
		}, []string{"result"}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "botboard",
			Name:      "sink_errors_total",
			Help:      "Snapshot sink failures.",
		}, []string{"sink"}),
		history: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "botboard",
			Name:      "history_length",
			Help:      "Snapshots in the stored history as of the last query.",
		}),
	}
	m.registry.MustRegister(
		m.ingests, m.queries, m.sinkErrors, m.history,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
