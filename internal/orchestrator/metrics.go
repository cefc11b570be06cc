package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "film_generator_jobs_submitted_total",
			Help: "Total number of generation jobs submitted, partitioned by kind.",
		},
		[]string{"kind"},
	)
	jobsAttached = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "film_generator_jobs_attached_total",
			Help: "Total number of submissions resolved by attaching to an existing job.",
		},
		[]string{"kind"},
	)
	jobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "film_generator_jobs_completed_total",
			Help: "Total number of jobs reaching a terminal status, partitioned by kind and status.",
		},
		[]string{"kind", "status"},
	)
	jobsCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "film_generator_jobs_cancelled_total",
			Help: "Total number of locally issued job cancellations.",
		},
		[]string{"kind"},
	)
)
