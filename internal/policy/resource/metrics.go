package resource

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lostGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcoding_resource_lost",
		Help: "1 while transcoding resources are lost",
	})
	availableMemoryGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcoding_resource_available_memory_megabytes",
		Help: "Available host memory at the last sample",
	})
	cpuGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcoding_resource_cpu_percent",
		Help: "Host CPU usage at the last sample",
	})
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcoding_resource_transitions_total",
		Help: "Resource state transitions",
	}, []string{"to"})
	pressureTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcoding_resource_pressure_total",
		Help: "Times host pressure made resources lost, by reason",
	}, []string{"reason"})
	sampleErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcoding_resource_sample_errors_total",
		Help: "Failed host samples",
	})
)
