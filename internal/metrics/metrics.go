package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradebox_runs_total",
			Help: "Total number of solution runs",
		},
		[]string{"language", "outcome"}, // outcome: "completed", "provision_error", "rejected"
	)

	VerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradebox_test_verdicts_total",
			Help: "Total number of test case verdicts",
		},
		[]string{"language", "status"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gradebox_run_duration_ms",
			Help:    "Solution run duration in milliseconds",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"language", "phase"}, // phase: "setup", "tests", "total"
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gradebox_queue_depth",
			Help: "Current number of runs waiting in the queue",
		},
	)

	ActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gradebox_active_workers",
			Help: "Number of workers currently grading a run",
		},
	)

	ContainerCreationTime = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gradebox_container_creation_ms",
			Help:    "Time to create and start a sandbox container",
			Buckets: []float64{50, 100, 200, 500, 1000, 2000},
		},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gradebox_rate_limit_hits_total",
			Help: "Total number of requests rejected by rate limiter",
		},
	)
)
