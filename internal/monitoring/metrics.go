package monitoring

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "depthcam"

// Poll outcomes recorded by RecordPoll.
const (
	OutcomeFrame  = "frame"
	OutcomeAbsent = "absent"
	OutcomeFault  = "fault"
)

var (
	// channelPollsTotal counts channel polls by outcome.
	channelPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_polls_total",
			Help:      "Total number of channel polls by outcome",
		},
		[]string{"channel", "outcome"}, // outcome: frame, absent, fault
	)

	// bufferAllocationsTotal counts resident buffer reallocations.
	bufferAllocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffer_allocations_total",
			Help:      "Total number of channel buffer allocations",
		},
		[]string{"channel"},
	)

	// detectionsTotal counts decoded detector boxes by class name.
	detectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Total number of decoded detections by class",
		},
		[]string{"class"},
	)

	// sessionsActive is 1 while a camera session is initialised.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_active",
			Help:      "Number of initialised camera sessions",
		},
	)

	// streamFramesTotal counts encoded frames served by stream name.
	streamFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_frames_total",
			Help:      "Total number of encoded frames served",
		},
		[]string{"stream"},
	)

	allMetrics = []prometheus.Collector{
		channelPollsTotal,
		bufferAllocationsTotal,
		detectionsTotal,
		sessionsActive,
		streamFramesTotal,
	}

	registryOnce sync.Once
	registry     *prometheus.Registry
)

// RecordPoll records one channel poll.
func RecordPoll(channel, outcome string) {
	channelPollsTotal.WithLabelValues(channel, outcome).Inc()
}

// RecordAllocation records a buffer (re)allocation for channel.
func RecordAllocation(channel string) {
	bufferAllocationsTotal.WithLabelValues(channel).Inc()
}

// RecordDetection records one decoded detection.
func RecordDetection(class string) {
	detectionsTotal.WithLabelValues(class).Inc()
}

// RecordSessionStart marks a session as initialised.
func RecordSessionStart() {
	sessionsActive.Inc()
}

// RecordSessionEnd marks a session as released.
func RecordSessionEnd() {
	sessionsActive.Dec()
}

// RecordStreamFrame records one encoded frame on stream.
func RecordStreamFrame(stream string) {
	streamFramesTotal.WithLabelValues(stream).Inc()
}

// Registry returns the process registry holding the camera metrics and the
// Go runtime and process collectors.
func Registry() *prometheus.Registry {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		for _, c := range allMetrics {
			registry.MustRegister(c)
		}
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
	return registry
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry(), promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
