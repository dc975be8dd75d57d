package uid

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	monitoredGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcoding_uidpolicy_monitored_uids",
		Help: "Number of uids monitored for foreground changes",
	})
	topSizeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcoding_uidpolicy_top_uids",
		Help: "Number of uids in the top set",
	})
	topChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcoding_uidpolicy_top_changes_total",
		Help: "Top set change notifications by result",
	}, []string{"result"})
)
