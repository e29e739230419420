/*
Package metrics provides Prometheus metrics and the health registry for poanet.

All metrics are package-level collectors registered with the default registry
in init() and exposed by Handler() on /metrics.

# Metrics

	poanet_networks_total                       gauge      networks in the roster
	poanet_nodes_total{role}                    gauge      roster nodes by role
	poanet_roster_drift{network}                gauge      nodes in only one of roster and manifest
	poanet_operations_total{operation,status}   counter    lifecycle operations, status success|error
	poanet_operation_duration_seconds{operation} histogram lifecycle operation latency
	poanet_container_start_wait_seconds         histogram  time until a container reports running
	poanet_reconciliation_duration_seconds      histogram  drift check cycle latency
	poanet_reconciliation_cycles_total          counter    drift check cycles
	poanet_api_requests_total{method,status}    counter    HTTP API requests
	poanet_api_request_duration_seconds{method} histogram  HTTP API latency

The roster gauges are refreshed by Collector, which only needs a RosterSource
(storage.Store satisfies it).

# Timing operations

	timer := metrics.NewTimer()
	err := doWork()
	metrics.ObserveOperation("add_node", timer, err)

# Health

Components report through UpdateComponent. The roster, runtime and api
components are critical: any of them unhealthy turns /health into 503, and all
of them must be registered and healthy for /ready to return 200. Other
unhealthy components only mark the process degraded.
*/
package metrics
