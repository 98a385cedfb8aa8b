package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ticksTotal      *prometheus.CounterVec
	freeSlots       prometheus.Gauge
	rejectedTotal   *prometheus.CounterVec
	commandFailures *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Gauge, *prometheus.CounterVec, *prometheus.CounterVec) {
	ticks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_ticks_total",
			Help: "Number of dispatch ticks by outcome",
		},
		[]string{"outcome"},
	)
	slots := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_free_slots",
			Help: "Free retriever slots reported by the last snapshot",
		},
	)
	rejected := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_candidates_rejected_total",
			Help: "Candidates excluded from hiring by reason",
		},
		[]string{"reason"},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_host_command_failures_total",
			Help: "Host commands that returned an error",
		},
		[]string{"command"},
	)
	return ticks, slots, rejected, failures
}

func init() {
	ticksTotal, freeSlots, rejectedTotal, commandFailures = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(ticksTotal, freeSlots, rejectedTotal, commandFailures)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	ticksTotal, freeSlots, rejectedTotal, commandFailures = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
