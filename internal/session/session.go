// Package session models the lifecycle state machines shared by the
// producer server and consumer client, plus the identity assigned to each
// connection. The producer server and consumer client set their state from
// more than one goroutine and guard it with their own mutex; Connection
// carries no lock and is used only by the goroutine serving its session.
package session

import "github.com/google/uuid"

// ProducerState is the lifecycle of the producer's transport server.
type ProducerState uint8

const (
	ProducerIdle ProducerState = iota
	ProducerListening
	ProducerServing
	ProducerStopped
)

func (s ProducerState) String() string {
	switch s {
	case ProducerIdle:
		return "idle"
	case ProducerListening:
		return "listening"
	case ProducerServing:
		return "serving"
	case ProducerStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ConsumerState is the lifecycle of the consumer's transport client.
type ConsumerState uint8

const (
	ConsumerIdle ConsumerState = iota
	ConsumerConnecting
	ConsumerReceiving
	ConsumerDisconnected
)

func (s ConsumerState) String() string {
	switch s {
	case ConsumerIdle:
		return "idle"
	case ConsumerConnecting:
		return "connecting"
	case ConsumerReceiving:
		return "receiving"
	case ConsumerDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// NewID generates a fresh session/connection identifier.
func NewID() string {
	return uuid.NewString()
}

// Connection holds per-connection metadata for a single accepted producer
// session: identity, peer address, and whether a key frame has been
// requested from the capture pipeline yet.
type Connection struct {
	ID       string
	PeerAddr string

	keyFrameRequested bool
}

// NewConnection creates connection metadata with a fresh ID.
func NewConnection(peerAddr string) *Connection {
	return &Connection{ID: NewID(), PeerAddr: peerAddr}
}

// RequestKeyFrame marks that a key-frame request has been signaled for this
// connection. Returns false if it had already been requested, so callers
// signal at most once per connection.
func (c *Connection) RequestKeyFrame() bool {
	if c.keyFrameRequested {
		return false
	}
	c.keyFrameRequested = true
	return true
}

// KeyFrameRequested reports whether a key frame has already been requested
// for this connection.
func (c *Connection) KeyFrameRequested() bool {
	return c.keyFrameRequested
}
