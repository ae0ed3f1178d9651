// Package metrics defines the broker's Prometheus instrumentation
// (SPEC_FULL.md §C12).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ManagerBuildsTotal counts build-procedure executions per manager kind and
// key, backs Testable Property #1 (build coalescing) in integration
// checks and operator dashboards alike.
var ManagerBuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "broker_manager_builds_total",
	Help: "Number of times a manager's build procedure actually executed.",
}, []string{"kind", "key"})

// ManagerState exposes the current lifecycle state as a gauge per
// (kind, key, state) combination: 1 for the active state, 0 otherwise.
var ManagerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "broker_manager_state",
	Help: "Current lifecycle state of a manager (1 = active state, 0 otherwise).",
}, []string{"kind", "key", "state"})

// RegistryCloseTotal counts close attempts made by CloseAll/ReplaceFromConfig.
var RegistryCloseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "broker_registry_close_total",
	Help: "Number of manager close attempts made during registry close operations.",
}, []string{"kind", "key", "result"})

// PQState exposes the last-observed PQ state per (system, name) as a gauge
// keyed by state label, same 1/0 convention as ManagerState.
var PQState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "broker_pq_state",
	Help: "Last observed PQ state (1 = active state, 0 otherwise).",
}, []string{"system", "name", "state"})

// ResponseBytes records the serialized size of formatted responses, for
// size-guard tuning and dashboarding.
var ResponseBytes = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "broker_response_bytes",
	Help:    "Size in bytes of formatted tool responses.",
	Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
})

// SetManagerState zeroes every known state label for (kind, key) before
// setting the active one, so a Grafana panel never shows two states lit at
// once for the same series.
func SetManagerState(kind, key, active string, allStates []string) {
	for _, s := range allStates {
		v := 0.0
		if s == active {
			v = 1.0
		}
		ManagerState.WithLabelValues(kind, key, s).Set(v)
	}
}

// SetPQState mirrors SetManagerState for PQ gauges.
func SetPQState(system, name, active string, allStates []string) {
	for _, s := range allStates {
		v := 0.0
		if s == active {
			v = 1.0
		}
		PQState.WithLabelValues(system, name, s).Set(v)
	}
}
