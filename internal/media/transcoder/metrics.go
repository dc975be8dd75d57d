package transcoder

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	samplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoding_track_samples_total",
			Help: "Samples moved through track transcoders by direction (in = queued to decoder, out = delivered from encoder).",
		},
		[]string{"direction"},
	)

	loopExitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoding_track_loop_exits_total",
			Help: "Transcode loop exits by result.",
		},
		[]string{"result"},
	)

	codecErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoding_codec_errors_total",
			Help: "Asynchronous codec errors by codec role.",
		},
		[]string{"role"},
	)
)

func loopResult(err error, eos bool) string {
	switch {
	case err == nil && eos:
		return "eos"
	case errors.Is(err, ErrStoppedEarly):
		return "stopped_early"
	case err != nil:
		return "error"
	default:
		return "unknown"
	}
}
