package history

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcoding_history_outcomes_total",
		Help: "Session outcomes handed to the history store, by result",
	}, []string{"result"})
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcoding_history_queue_depth",
		Help: "Outcomes waiting to be written",
	})
)
