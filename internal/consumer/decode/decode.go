// Package decode defines the narrow interfaces the consumer core depends
// on for video/audio decoding and presentation. Decoder and render
// implementations (codec engines, the video surface) are external
// collaborators out of scope for this module; the core only ever consumes
// these contracts and a "frame available" signal.
package decode

// VideoDecoder is implemented by a video codec decoder backend.
type VideoDecoder interface {
	// Configure primes the decoder from VideoConfig init bytes.
	Configure(initBytes []byte) error
	// Decode submits one video access unit. The decoder is responsible for
	// returning quickly; any CPU-heavy work should be offloaded by the
	// decoder façade itself, not run on the caller's goroutine.
	Decode(payload []byte, isKey bool) error
	// Reset returns the decoder to a known-empty state, called via
	// parser.ResetDecoders once the Transport Client has entered Receiving
	// (spec §4.3: a new session invalidates all session-scoped state).
	Reset()
}

// AudioDecoder mirrors VideoDecoder for the audio path.
type AudioDecoder interface {
	Configure(initBytes []byte) error
	Decode(payload []byte) error
	Reset()
}

// FrameAvailable is published by a VideoDecoder implementation (not by the
// core) whenever a decoded frame is ready for presentation; the render
// façade subscribes. The core never renders.
type FrameAvailable struct {
	Width  uint32
	Height uint32
}
