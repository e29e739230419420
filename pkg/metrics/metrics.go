package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Roster metrics
	NetworksTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "poanet_networks_total",
			Help: "Total number of networks in the roster",
		},
	)

	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "poanet_nodes_total",
			Help: "Total number of nodes by role",
		},
		[]string{"role"},
	)

	RosterDrift = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "poanet_roster_drift",
			Help: "Number of nodes present in only one of roster and manifest",
		},
		[]string{"network"},
	)

	// Lifecycle metrics
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poanet_operations_total",
			Help: "Total number of lifecycle operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poanet_operation_duration_seconds",
			Help:    "Lifecycle operation duration in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"operation"},
	)

	ContainerStartWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poanet_container_start_wait_seconds",
			Help:    "Time spent waiting for a container to reach the running state",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30},
		},
	)

	// Reconciler metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poanet_reconciliation_duration_seconds",
			Help:    "Time taken by one drift check cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "poanet_reconciliation_cycles_total",
			Help: "Total number of drift check cycles",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poanet_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poanet_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(NetworksTotal)
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(RosterDrift)
	prometheus.MustRegister(OperationsTotal)
	prometheus.MustRegister(OperationDuration)
	prometheus.MustRegister(ContainerStartWait)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCyclesTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveOperation records the outcome and duration of a lifecycle operation
func ObserveOperation(operation string, timer *Timer, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	timer.ObserveDurationVec(OperationDuration, operation)
}
