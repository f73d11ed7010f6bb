package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exported by the loopback sink. The probe binary is single-shot
// and carries no metrics endpoint; its verdict is its output.
var (
	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamsink_active_streams",
			Help: "A gauge of media streams currently held open by the sink.",
		})
	StreamsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsink_streams_total",
			Help: "Number of stream sessions served by the sink.",
		},
		[]string{"verdict"},
	)
	MediaFramesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamsink_media_frames_sent_total",
			Help: "Number of synthetic media frames emitted by the sink.",
		})
	StreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "streamsink_stream_duration_seconds",
			Help: "A histogram of stream session durations.",
			Buckets: []float64{
				.01, .025, .05, .1, .25, .5,
				1, 2.5, 5, 10, 15, 30, 60},
		},
		[]string{"verdict"},
	)
)
