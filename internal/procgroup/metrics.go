package procgroup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	terminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcoding_proc_terminate_total",
		Help: "Signals sent while terminating process groups",
	}, []string{"signal", "result"})

	waitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcoding_proc_wait_total",
		Help: "Process group exits observed by Terminate",
	}, []string{"result"})
)
