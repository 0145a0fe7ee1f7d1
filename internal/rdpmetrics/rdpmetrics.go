// Package rdpmetrics exposes this module's prometheus counters and gauges,
// following the teacher's pattern of package-level metrics registered
// against the default registry at import time. The channel multiplexer
// (pkg/channels) updates ChannelBytesTotal, DvcOpen and ReassemblyDropped;
// ActiveStageFramesTotal and ConnectDuration are registered, but no package
// in this module updates them.
package rdpmetrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ChannelBytesTotal counts bytes dispatched per static channel
	// direction, labeled by channel name and direction ("inbound" or
	// "outbound").
	ChannelBytesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rdpcore",
		Subsystem: "channels",
		Name:      "bytes_total",
		Help:      "Total bytes dispatched through static/dynamic virtual channels.",
	}, []string{"channel", "direction"})

	// DvcOpen tracks the number of currently-open dynamic virtual
	// channels, labeled by channel name.
	DvcOpen = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rdpcore",
		Subsystem: "channels",
		Name:      "dvc_open",
		Help:      "Number of dynamic virtual channels currently open.",
	}, []string{"channel"})

	// ReassemblyDropped counts static-channel reassembly buffers abandoned
	// because a new FIRST chunk arrived before the previous assembly
	// completed.
	ReassemblyDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rdpcore",
		Subsystem: "channels",
		Name:      "reassembly_dropped_total",
		Help:      "Static-channel reassembly buffers dropped due to an interrupting FIRST chunk.",
	}, []string{"channel"})

	// ActiveStageFramesTotal counts frames processed by the active-stage
	// pump, labeled by direction.
	ActiveStageFramesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rdpcore",
		Subsystem: "activestage",
		Name:      "frames_total",
		Help:      "Frames processed by the active-stage loop.",
	}, []string{"direction"})

	// ConnectDuration observes wall-clock time spent in the connector's
	// handshake, labeled by terminal outcome ("connected", "access_denied",
	// "error").
	ConnectDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rdpcore",
		Subsystem: "connector",
		Name:      "connect_duration_seconds",
		Help:      "Time spent driving the connector state machine to completion.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(ChannelBytesTotal, DvcOpen, ReassemblyDropped, ActiveStageFramesTotal, ConnectDuration)
}
