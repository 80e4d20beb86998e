// Package metrics exposes refresh and data-quality counters for Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so tests and multiple servers don't collide on
// the global default registerer.
type Metrics struct {
	registry *prometheus.Registry

	Refreshes      *prometheus.CounterVec
	Batches        *prometheus.GaugeVec
	DataIssues     *prometheus.CounterVec
	LastRefresh    prometheus.Gauge
	RefreshSeconds prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "batchcal",
			Name:      "refreshes_total",
			Help:      "Batch refresh runs by result.",
		}, []string{"result"}),
		Batches: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "batchcal",
			Name:      "batches",
			Help:      "Batches in the current snapshot by source.",
		}, []string{"source"}),
		DataIssues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "batchcal",
			Name:      "batch_data_issues_total",
			Help:      "Data-quality issues in API batch records by field. Only field=record means the record was dropped.",
		}, []string{"field"}),
		LastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "batchcal",
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time of the last successful refresh.",
		}),
		RefreshSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "batchcal",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of refresh runs.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(
		m.Refreshes,
		m.Batches,
		m.DataIssues,
		m.LastRefresh,
		m.RefreshSeconds,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
