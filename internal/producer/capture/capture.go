// Package capture defines the narrow interface the producer core depends on
// for screen/audio surface capture. Capture implementations (surface
// capture, playback capture, permission prompts) are external collaborators
// out of scope for this module; the core only ever consumes this contract.
package capture

// Source is implemented by a screen/audio capture backend. The core never
// implements Source itself.
type Source interface {
	// Start begins capturing and calling back into the registered observers
	// until Stop is called or an unrecoverable capture error occurs.
	Start() error
	// Stop ends capture. Idempotent.
	Stop() error
}

// DimensionObserver is notified when the captured surface's pixel
// dimensions change. No type in this module implements it; the producer
// binary receives dimension changes as Dimension packets on stdin and
// submits them to the multiplexer, without requesting a key frame.
type DimensionObserver interface {
	OnDimensionChanged(width, height uint32)
}

// PermissionObserver is notified if OS-level capture permission is revoked
// mid-session. No type in this module implements it, and nothing in the
// producer stops the server on permission loss.
type PermissionObserver interface {
	OnPermissionLost(reason error)
}
