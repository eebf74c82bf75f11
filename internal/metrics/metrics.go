// Package metrics declares the console's prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BackendRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_backend_requests_total",
		Help: "Rescue backend calls by endpoint and outcome",
	}, []string{"endpoint", "outcome"})
	BackendDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_backend_duration_ms",
		Help:    "Rescue backend call duration in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"endpoint"})
	RollbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_optimistic_rollbacks_total",
		Help: "Optimistic team updates rolled back after a backend failure",
	}, []string{"action"})
	AlertRecipients = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_alert_recipients",
		Help:    "Recipients per area alert broadcast",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})
	DensityComputations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_density_computations_total",
		Help: "Ward density recomputations",
	})
	LoadFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_load_failures_total",
		Help: "Map data sources that failed during a load",
	}, []string{"source"})
	MonitorAlertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_monitor_alerts_total",
		Help: "Health alerts posted to the operations webhook by type",
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(BackendRequestsTotal)
	prometheus.MustRegister(BackendDurationMs)
	prometheus.MustRegister(RollbacksTotal)
	prometheus.MustRegister(AlertRecipients)
	prometheus.MustRegister(DensityComputations)
	prometheus.MustRegister(LoadFailuresTotal)
	prometheus.MustRegister(MonitorAlertsTotal)
}

// ObserveBackend records one backend call.
func ObserveBackend(endpoint string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	BackendRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	BackendDurationMs.WithLabelValues(endpoint).Observe(float64(time.Since(started).Milliseconds()))
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
