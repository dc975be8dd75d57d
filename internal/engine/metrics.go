package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transcoding_engine_active_jobs",
			Help: "Jobs currently owned by the engine driver.",
		},
	)

	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoding_engine_jobs_total",
			Help: "Jobs that left the engine, by result.",
		},
		[]string{"result"},
	)

	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoding_engine_commands_total",
			Help: "Commands received from the controller.",
		},
		[]string{"command"},
	)

	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoding_engine_events_total",
			Help: "Engine events by kind and delivery result.",
		},
		[]string{"event", "result"},
	)
)
