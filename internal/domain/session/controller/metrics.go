package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transcoding_controller_sessions",
			Help: "Sessions currently known to the controller.",
		},
	)

	resourceLostGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transcoding_controller_resource_lost",
			Help: "1 while transcoding resources are reported lost.",
		},
	)

	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoding_controller_submissions_total",
			Help: "Session submissions by result.",
		},
		[]string{"result"},
	)

	sessionsRemovedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoding_controller_sessions_removed_total",
			Help: "Sessions removed from the controller by outcome.",
		},
		[]string{"outcome"},
	)

	engineCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoding_controller_engine_commands_total",
			Help: "Commands issued to the transcoder engine.",
		},
		[]string{"command"},
	)

	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoding_controller_state_transitions_total",
			Help: "Session state transitions.",
		},
		[]string{"state_from", "state_to"},
	)

	staleEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoding_controller_stale_events_total",
			Help: "Engine events dropped because the session is unknown or never started.",
		},
		[]string{"event", "reason"},
	)

	invariantViolationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcoding_controller_invariant_violations_total",
			Help: "Scheduler invariant violations detected at runtime.",
		},
	)
)
