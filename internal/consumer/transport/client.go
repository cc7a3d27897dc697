// Package transport implements the consumer-side Transport Client: it
// connects to a producer endpoint, applies the consumer socket policy, and
// hands the raw connection to the Stream Parser. Grounded on a teacher
// RTMP client's dial-then-handshake sequencing and idempotent Close, minus
// the handshake and command round-trip this protocol does not have — the
// client dials and is immediately ready to read framed packets.
package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/qubzes/screenreflect/internal/apperrors"
	"github.com/qubzes/screenreflect/internal/logger"
	"github.com/qubzes/screenreflect/internal/observer"
	"github.com/qubzes/screenreflect/internal/session"
)

// DefaultDialTimeout bounds how long Connect waits for the TCP handshake.
const DefaultDialTimeout = 5 * time.Second

// Config configures a Client.
type Config struct {
	Endpoint    string // host:port
	DialTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
}

// Client owns the consumer's connection lifecycle.
type Client struct {
	cfg Config

	mu      sync.Mutex
	conn    net.Conn
	state   session.ConsumerState
	lastErr string
	closed  bool

	states   *observer.Publisher[session.ConsumerState]
	lastErrs *observer.Publisher[string]
}

// New creates an idle Client.
func New(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg:      cfg,
		state:    session.ConsumerIdle,
		states:   observer.NewPublisher[session.ConsumerState](),
		lastErrs: observer.NewPublisher[string](),
	}
}

// States returns the connection-state observer for UI consumption.
func (c *Client) States() *observer.Publisher[session.ConsumerState] {
	return c.states
}

// LastErrors returns the last-error-string observer for UI consumption.
func (c *Client) LastErrors() *observer.Publisher[string] {
	return c.lastErrs
}

// State returns the current lifecycle state.
func (c *Client) State() session.ConsumerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(st session.ConsumerState) {
	c.mu.Lock()
	c.state = st
	c.mu.Unlock()
	c.states.Publish(st)
}

func (c *Client) setLastError(msg string) {
	c.mu.Lock()
	c.lastErr = msg
	c.mu.Unlock()
	c.lastErrs.Publish(msg)
}

// Connect dials the configured endpoint. On success the Client enters
// Receiving and the underlying connection is available via Conn. On
// failure the Client enters Disconnected with a surfaced last-error.
func (c *Client) Connect(ctx context.Context) error {
	c.setState(session.ConsumerConnecting)

	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Endpoint)
	if err != nil {
		wrapped := apperrors.NewTransportError("connect", err)
		c.setLastError(wrapped.Error())
		c.setState(session.ConsumerDisconnected)
		return wrapped
	}

	if err := tuneSocket(conn); err != nil {
		logger.Warn("consumer socket tuning failed", "error", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.closed = false
	c.mu.Unlock()

	c.setState(session.ConsumerReceiving)
	return nil
}

// Conn returns the underlying connection established by Connect, or nil if
// not currently connected.
func (c *Client) Conn() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Fail transitions the client to Disconnected with the given error
// surfaced as last-error. Called by the owner of the receive loop with the
// error the Stream Parser's Run returned (spec §4.3: short reads/framing
// errors are fatal to session).
func (c *Client) Fail(err error) {
	if err == nil {
		return
	}
	c.setLastError(err.Error())
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	c.setState(session.ConsumerDisconnected)
}

// Close disconnects idempotently.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	c.setState(session.ConsumerDisconnected)
	return err
}
