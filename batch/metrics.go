package batch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbprop_runs_total",
			Help: "Total number of finished propagation runs by final status.",
		},
		[]string{"status"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orbprop_run_duration_seconds",
			Help:    "Wall clock duration of one propagation run.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
	)

	stepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbprop_steps_total",
			Help: "Integration steps by outcome.",
		},
		[]string{"outcome"},
	)

	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbprop_events_total",
			Help: "Located events by action.",
		},
		[]string{"action"},
	)

	runsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbprop_runs_in_flight",
			Help: "Propagation runs currently executing.",
		},
	)
)

func init() {
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(runDurationSeconds)
	prometheus.MustRegister(stepsTotal)
	prometheus.MustRegister(eventsTotal)
	prometheus.MustRegister(runsInFlight)
}
