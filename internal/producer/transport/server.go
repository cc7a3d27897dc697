// Package transport implements the producer-side Transport Server: it owns
// the listening endpoint, accepts a single consumer session at a time,
// replays the multiplexer's cached blobs on accept, and drains the
// multiplexer over the connection. Grounded on a teacher RTMP server's
// listener lifecycle (Start/Stop/acceptLoop, graceful shutdown) and its
// connection wrapper's write-loop-before-read-loop ordering — simplified
// here since the protocol has no read direction on the producer side and
// serves at most one consumer at a time (multi-client fanout is out of
// scope).
package transport

import (
	"errors"
	"net"
	"sync"

	"github.com/qubzes/screenreflect/internal/logger"
	"github.com/qubzes/screenreflect/internal/metrics"
	"github.com/qubzes/screenreflect/internal/observer"
	"github.com/qubzes/screenreflect/internal/producer/multiplex"
	"github.com/qubzes/screenreflect/internal/session"
)

// Config holds Server configuration.
type Config struct {
	ListenAddr string
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":47631"
	}
}

// Server owns the producer's listening endpoint and the single active
// consumer connection, if any.
type Server struct {
	cfg Config
	mux *multiplex.Multiplexer

	// OnClientConnected is invoked once per accepted session, after the
	// cached-blob replay, so the encoder façade can be asked for a fresh
	// key frame (spec §4.5). May be nil.
	OnClientConnected func()

	mu      sync.Mutex
	ln      net.Listener
	state   session.ProducerState
	closing bool
	current *sessionConn

	states *observer.Publisher[session.ProducerState]
}

// New creates an unstarted Server bound to mux.
func New(cfg Config, mux *multiplex.Multiplexer) *Server {
	cfg.applyDefaults()
	return &Server{
		cfg:    cfg,
		mux:    mux,
		state:  session.ProducerIdle,
		states: observer.NewPublisher[session.ProducerState](),
	}
}

// States returns the connection-state observer, for UI/diagnostics.
func (s *Server) States() *observer.Publisher[session.ProducerState] {
	return s.states
}

// State returns the current lifecycle state.
func (s *Server) State() session.ProducerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Server) setState(st session.ProducerState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.states.Publish(st)
}

// Start binds the listener and launches the accept loop. Safe to call only
// once.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.ln != nil {
		s.mu.Unlock()
		return errors.New("transport: server already started")
	}
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.ln = ln
	s.mu.Unlock()

	s.setState(session.ProducerListening)
	logger.Info("transport server listening", "addr", ln.Addr().String())
	go s.acceptLoop(ln)
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if closing {
				return
			}
			logger.Warn("transport accept error", "error", err)
			return
		}
		s.serveOne(nc)
	}
}

// serveOne runs the one-at-a-time accepted session synchronously: a new
// accept only happens after the previous session ends, matching "accept a
// single consumer session" (spec §4.2).
func (s *Server) serveOne(nc net.Conn) {
	if err := tuneSocket(nc); err != nil {
		logger.Warn("socket tuning failed", "error", err)
	}

	sc := newSessionConn(nc, s.mux)
	s.mu.Lock()
	s.current = sc
	s.mu.Unlock()

	s.setState(session.ProducerServing)

	var connected bool
	err := sc.serve(func() {
		connected = true
		if s.OnClientConnected != nil {
			s.OnClientConnected()
		}
	})
	sc.close()
	s.mux.ResetSession()
	if connected {
		metrics.ActiveSessions.Dec()
	}

	s.mu.Lock()
	s.current = nil
	closing := s.closing
	s.mu.Unlock()

	if err != nil {
		logger.Warn("session ended with error", "error", err)
	}
	if !closing {
		s.setState(session.ProducerListening)
	}
}

// Stop gracefully shuts down the server: stops accepting, closes the active
// connection if any, and transitions to Stopped.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.ln == nil {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	ln := s.ln
	s.ln = nil
	current := s.current
	s.mu.Unlock()

	_ = ln.Close()
	if current != nil {
		current.close()
	}

	s.setState(session.ProducerStopped)
	logger.Info("transport server stopped")
	return nil
}
