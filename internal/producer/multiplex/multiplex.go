// Package multiplex implements the producer-side packet multiplexer: it
// caches session-defining blobs (VideoConfig, AudioConfig, KeyFrame,
// Dimension), enforces the bounded-queue backpressure and drop policies for
// live video/audio frames, and presents a single ordered drain to the
// transport writer. submit never blocks on I/O.
//
// Grounded on the cache+broadcast pattern in a teacher RTMP server's stream
// registry (session-defining sequence-header caching for late joiners) and
// its media relay's non-blocking subscriber send.
package multiplex

import (
	"sync"
	"time"

	"github.com/qubzes/screenreflect/internal/metrics"
	"github.com/qubzes/screenreflect/internal/wire"
)

// InterleaveBatchSize is the number of frames taken per kind, alternately,
// at each drain tick (spec §4.1.2 Open Question; see design notes for the
// choice of 3).
const InterleaveBatchSize = 3

// DefaultQueueCapacity bounds each per-kind live queue.
const DefaultQueueCapacity = 256

// DefaultKeyFrameGraceWindow is how long the Multiplexer waits for a key
// frame after a client-connected signal before logging a diagnostic and
// incrementing the keyframe-timeout metric.
const DefaultKeyFrameGraceWindow = 2 * time.Second

// Multiplexer holds one producer session's caches and live-frame queues.
// Safe for concurrent use: submit is called from capture/encoder threads,
// drain and the cache-replay methods are called from the transport writer
// thread.
type Multiplexer struct {
	videoConfig blobCache
	audioConfig blobCache
	keyFrame    blobCache
	dimension   blobCache

	videoQueue *boundedQueue
	audioQueue *boundedQueue

	keyFrameGrace time.Duration

	mu            sync.Mutex
	timer         *time.Timer
	timerArmed    bool
	onKeyTimeout  func()
}

// Option configures a Multiplexer at construction time.
type Option func(*Multiplexer)

// WithQueueCapacity overrides DefaultQueueCapacity for both queues.
func WithQueueCapacity(capacity int) Option {
	return func(m *Multiplexer) {
		m.videoQueue = newBoundedQueue(capacity)
		m.audioQueue = newBoundedQueue(capacity)
	}
}

// WithKeyFrameGraceWindow overrides DefaultKeyFrameGraceWindow.
func WithKeyFrameGraceWindow(d time.Duration) Option {
	return func(m *Multiplexer) { m.keyFrameGrace = d }
}

// New creates an empty Multiplexer.
func New(opts ...Option) *Multiplexer {
	m := &Multiplexer{
		videoQueue:    newBoundedQueue(DefaultQueueCapacity),
		audioQueue:    newBoundedQueue(DefaultQueueCapacity),
		keyFrameGrace: DefaultKeyFrameGraceWindow,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Submit accepts an encoder output tagged by kind. It never blocks on I/O:
// cache writes are atomic swaps and queue offers are bounded with a
// non-blocking drop policy. payload is always copied before being retained
// (by the cache or the queue); the caller's buffer is never aliased and may
// be reused or pooled the instant Submit returns.
func (m *Multiplexer) Submit(kind wire.Kind, payload []byte, isKey bool) {
	switch kind {
	case wire.KindVideoConfig:
		m.videoConfig.set(payload)
		metrics.CacheRefreshes.WithLabelValues("VideoConfig").Inc()
		metrics.PacketsSubmitted.WithLabelValues("VideoConfig").Inc()
	case wire.KindAudioConfig:
		m.audioConfig.set(payload)
		metrics.CacheRefreshes.WithLabelValues("AudioConfig").Inc()
		metrics.PacketsSubmitted.WithLabelValues("AudioConfig").Inc()
	case wire.KindDimension:
		m.dimension.set(payload)
		metrics.CacheRefreshes.WithLabelValues("Dimension").Inc()
		metrics.PacketsSubmitted.WithLabelValues("Dimension").Inc()
	case wire.KindVideo:
		if isKey {
			m.keyFrame.set(payload)
			metrics.CacheRefreshes.WithLabelValues("KeyFrame").Inc()
			m.cancelKeyFrameTimer()
		}
		dropped, reason := m.videoQueue.offerVideo(payload, isKey)
		metrics.PacketsSubmitted.WithLabelValues("Video").Inc()
		if dropped {
			metrics.PacketsDropped.WithLabelValues("Video", reason).Inc()
		}
		metrics.QueueDepth.WithLabelValues("Video").Set(float64(m.videoQueue.len()))
	case wire.KindAudio:
		dropped := m.audioQueue.offerAudio(payload)
		metrics.PacketsSubmitted.WithLabelValues("Audio").Inc()
		if dropped {
			metrics.PacketsDropped.WithLabelValues("Audio", "oldest").Inc()
		}
		metrics.QueueDepth.WithLabelValues("Audio").Set(float64(m.audioQueue.len()))
	}
}

// ReplayCached returns the packets the accept contract requires, strictly
// ordered: VideoConfig, AudioConfig, KeyFrame (as a Video packet),
// Dimension — omitting any that have never been cached. Their pending
// markers are cleared since this call is the transmission.
func (m *Multiplexer) ReplayCached() []wire.Packet {
	var out []wire.Packet
	if b := m.videoConfig.get(); m.videoConfig.cached() {
		out = append(out, wire.Packet{Kind: wire.KindVideoConfig, Payload: b})
		m.videoConfig.clearPending()
	}
	if b := m.audioConfig.get(); m.audioConfig.cached() {
		out = append(out, wire.Packet{Kind: wire.KindAudioConfig, Payload: b})
		m.audioConfig.clearPending()
	}
	if b := m.keyFrame.get(); m.keyFrame.cached() {
		out = append(out, wire.Packet{Kind: wire.KindVideo, Payload: b})
		m.keyFrame.clearPending()
	}
	if b := m.dimension.get(); m.dimension.cached() {
		out = append(out, wire.Packet{Kind: wire.KindDimension, Payload: b})
		m.dimension.clearPending()
	}
	return out
}

// Drain returns the next packets to send, honoring strict priority: pending
// VideoConfig, then pending AudioConfig, then pending Dimension, then up to
// InterleaveBatchSize video and audio frames interleaved from the live
// queues. Returns nil if there is nothing to send.
func (m *Multiplexer) Drain() []wire.Packet {
	var out []wire.Packet

	if b, ok := m.videoConfig.takePending(); ok {
		out = append(out, wire.Packet{Kind: wire.KindVideoConfig, Payload: b})
	}
	if b, ok := m.audioConfig.takePending(); ok {
		out = append(out, wire.Packet{Kind: wire.KindAudioConfig, Payload: b})
	}
	if b, ok := m.dimension.takePending(); ok {
		out = append(out, wire.Packet{Kind: wire.KindDimension, Payload: b})
	}

	videoFrames := m.videoQueue.takeUpTo(InterleaveBatchSize)
	audioFrames := m.audioQueue.takeUpTo(InterleaveBatchSize)
	max := len(videoFrames)
	if len(audioFrames) > max {
		max = len(audioFrames)
	}
	for i := 0; i < max; i++ {
		if i < len(videoFrames) {
			out = append(out, wire.Packet{Kind: wire.KindVideo, Payload: videoFrames[i].payload})
		}
		if i < len(audioFrames) {
			out = append(out, wire.Packet{Kind: wire.KindAudio, Payload: audioFrames[i].payload})
		}
	}

	metrics.QueueDepth.WithLabelValues("Video").Set(float64(m.videoQueue.len()))
	metrics.QueueDepth.WithLabelValues("Audio").Set(float64(m.audioQueue.len()))

	return out
}

// ResetSession clears the live queues and pending-to-send markers. Caches
// are left intact and are re-sent in full via ReplayCached on the next
// accept.
func (m *Multiplexer) ResetSession() {
	m.videoQueue.clear()
	m.audioQueue.clear()
	m.videoConfig.clearPending()
	m.audioConfig.clearPending()
	m.dimension.clearPending()
	m.cancelKeyFrameTimer()
}

// OnClientConnected starts the key-frame grace timer described in the
// design notes: if no key frame is submitted within the grace window, fn is
// invoked once (expected to log a warning and increment a metric). Calling
// OnClientConnected again before the timer fires restarts the window.
func (m *Multiplexer) OnClientConnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.onKeyTimeout = fn
	m.timerArmed = true
	m.timer = time.AfterFunc(m.keyFrameGrace, func() {
		m.mu.Lock()
		armed := m.timerArmed
		cb := m.onKeyTimeout
		m.timerArmed = false
		m.mu.Unlock()
		if armed && cb != nil {
			cb()
		}
	})
}

func (m *Multiplexer) cancelKeyFrameTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timerArmed = false
}

// QueueStats reports current per-kind queue depth, for diagnostics.
func (m *Multiplexer) QueueStats() QueueStats {
	return QueueStats{
		VideoQueueDepth: m.videoQueue.len(),
		AudioQueueDepth: m.audioQueue.len(),
	}
}
