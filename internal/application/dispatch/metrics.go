package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_dispatch_events_total",
			Help: "Domain events accepted for fan-out",
		},
		[]string{"kind"},
	)

	branchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_dispatch_branches_total",
			Help: "Fan-out branches by outcome",
		},
		[]string{"kind", "role", "status"},
	)

	branchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notify_dispatch_branch_duration_seconds",
			Help:    "Duration of one fan-out branch",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5, 10},
		},
		[]string{"kind", "role"},
	)

	sendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_transport_sends_total",
			Help: "Transport send calls by result",
		},
		[]string{"role", "result"},
	)
)
