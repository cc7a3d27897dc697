// Package metrics exposes the process-wide Prometheus collectors shared by
// the producer and consumer binaries. All collectors are package-level and
// registered against the default registry via promauto, matching the rest
// of the ambient stack's process-global conventions (see internal/logger).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsSubmitted counts packets accepted by the multiplexer, labeled
	// by packet kind (VideoConfig, Video, Audio, AudioConfig, Dimension).
	PacketsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "screenreflect",
		Subsystem: "multiplex",
		Name:      "packets_submitted_total",
		Help:      "Packets accepted into the multiplexer, by kind.",
	}, []string{"kind"})

	// PacketsDropped counts packets dropped by the multiplexer's overflow
	// policy, labeled by kind and drop reason (Video: oldest_non_key,
	// incoming, oldest_key; Audio: oldest).
	PacketsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "screenreflect",
		Subsystem: "multiplex",
		Name:      "packets_dropped_total",
		Help:      "Packets dropped by the multiplexer overflow policy, by kind and reason.",
	}, []string{"kind", "reason"})

	// CacheRefreshes counts how often a cached session-defining blob
	// (VideoConfig/AudioConfig/KeyFrame/Dimension) was replaced.
	CacheRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "screenreflect",
		Subsystem: "multiplex",
		Name:      "cache_refresh_total",
		Help:      "Times a cached session-defining blob was replaced, by kind.",
	}, []string{"kind"})

	// QueueDepth reports the current depth of each per-kind bounded queue.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "screenreflect",
		Subsystem: "multiplex",
		Name:      "queue_depth",
		Help:      "Current depth of a bounded per-kind packet queue.",
	}, []string{"kind"})

	// KeyFrameTimeouts counts how often a requested key frame failed to
	// arrive within the configured deadline after a client connected.
	KeyFrameTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "screenreflect",
		Subsystem: "producer",
		Name:      "keyframe_timeout_total",
		Help:      "Times a requested key frame did not arrive before the deadline.",
	})

	// ActiveSessions reports the number of connected consumer sessions on
	// the producer side.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "screenreflect",
		Subsystem: "producer",
		Name:      "active_sessions",
		Help:      "Number of consumer sessions currently connected to the producer.",
	})

	// FramesParsed counts frames successfully parsed off the wire, labeled
	// by kind, on the consumer side.
	FramesParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "screenreflect",
		Subsystem: "consumer",
		Name:      "frames_parsed_total",
		Help:      "Frames successfully parsed off the wire, by kind.",
	}, []string{"kind"})

	// FramingErrors counts fatal framing violations encountered while
	// parsing the wire stream.
	FramingErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "screenreflect",
		Subsystem: "consumer",
		Name:      "framing_errors_total",
		Help:      "Fatal framing violations encountered while parsing the wire stream.",
	})
)
