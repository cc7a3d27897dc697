// Package encoder defines the narrow interfaces the producer core depends
// on for video/audio encoding, plus the client-connected feedback contract
// owned by the core (spec §4.5): the core exposes a "client connected" hook
// (transport.Server.OnClientConnected), and an encoder façade wired to it
// is responsible for emitting a key frame (and refreshed VideoConfig). Encoder implementations
// are external collaborators; the core never implements these interfaces.
package encoder

// VideoOutput is the sink an encoder façade hands its video output to. The
// encoder façade calls these; it never calls into the transport layer
// directly. multiplex.Multiplexer does not implement it: its single entry
// point is Submit(kind, payload, isKey).
type VideoOutput interface {
	SubmitVideoConfig(initBytes []byte)
	SubmitVideo(payload []byte, isKey bool)
}

// AudioOutput mirrors VideoOutput for the audio path.
type AudioOutput interface {
	SubmitAudioConfig(initBytes []byte)
	SubmitAudio(payload []byte)
}

// VideoEncoder is implemented by a video codec encoder backend.
type VideoEncoder interface {
	// RequestKeyFrame asks the encoder to emit a key frame as soon as
	// possible. Nothing in this module calls it: the producer binary takes
	// encoded input over stdin and holds no VideoEncoder, and its
	// transport.Server.OnClientConnected hook only starts the key-frame
	// grace timer.
	RequestKeyFrame()
}

// AudioEncoder is implemented by an audio codec encoder backend.
type AudioEncoder interface {
	// Nothing beyond encoding output is owned by the core for audio: there
	// is no audio key-frame concept at this layer.
}
