package config

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var reloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "transcoding_config_reloads_total",
	Help: "Configuration reloads by result",
}, []string{"result"})
