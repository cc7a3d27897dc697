package transport

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/qubzes/screenreflect/internal/apperrors"
	"github.com/qubzes/screenreflect/internal/logger"
	"github.com/qubzes/screenreflect/internal/producer/multiplex"
	"github.com/qubzes/screenreflect/internal/session"
	"github.com/qubzes/screenreflect/internal/wire"
)

// drainPollInterval is how often the writer thread wakes to check for new
// pending config/dimension updates or queued frames when nothing is
// immediately available, coalescing without busy-spinning.
const drainPollInterval = 5 * time.Millisecond

// sessionConn owns one accepted consumer connection end to end: the
// accept-contract replay, then the write-loop drain of the multiplexer.
// There is no read loop on the producer side; the protocol is unidirectional.
type sessionConn struct {
	conn *session.Connection
	nc   net.Conn
	mux  *multiplex.Multiplexer
	w    *wire.Writer
	bw   *bufio.Writer
	log  func(msg string, kv ...any)

	ctx    context.Context
	cancel context.CancelFunc
}

func newSessionConn(nc net.Conn, mux *multiplex.Multiplexer) *sessionConn {
	ctx, cancel := context.WithCancel(context.Background())
	bw := bufio.NewWriterSize(nc, sendBufferSize/4)
	return &sessionConn{
		conn:   session.NewConnection(nc.RemoteAddr().String()),
		nc:     nc,
		mux:    mux,
		w:      wire.NewWriter(bw),
		bw:     bw,
		ctx:    ctx,
		cancel: cancel,
	}
}

// serve runs the accept-contract replay then the drain write-loop. It
// blocks until the connection ends (write error, or Close is called) and
// returns the terminal error, if any.
func (sc *sessionConn) serve(onClientConnected func()) error {
	sl := logger.WithSession(logger.Logger(), sc.conn.ID, sc.conn.PeerAddr)
	sl.Info().Msg("session accepted")

	if err := sc.replayCached(); err != nil {
		return err
	}

	if onClientConnected != nil {
		onClientConnected()
	}

	return sc.writeLoop()
}

// replayCached implements the accept contract (spec §4.2): transmit cached
// VideoConfig, AudioConfig, KeyFrame, Dimension in that order before any
// live frame, then flush immediately so the new consumer can start
// decoding without waiting on the next drain tick.
func (sc *sessionConn) replayCached() error {
	for _, pkt := range sc.mux.ReplayCached() {
		if err := sc.w.WritePacket(pkt.Kind, pkt.Payload); err != nil {
			return apperrors.NewTransportError("replayCached", err)
		}
	}
	return sc.bw.Flush()
}

func (sc *sessionConn) writeLoop() error {
	defer sc.bw.Flush()
	timer := time.NewTimer(drainPollInterval)
	defer timer.Stop()

	for {
		select {
		case <-sc.ctx.Done():
			return nil
		case <-timer.C:
		}
		timer.Reset(drainPollInterval)

		packets := sc.mux.Drain()
		if len(packets) == 0 {
			continue
		}
		for _, pkt := range packets {
			if err := sc.w.WritePacket(pkt.Kind, pkt.Payload); err != nil {
				return apperrors.NewTransportError("drainWrite", err)
			}
		}
		if err := sc.bw.Flush(); err != nil {
			return apperrors.NewTransportError("drainFlush", err)
		}
	}
}

// close cancels the write loop and closes the connection. It does not wait
// for the write loop to exit.
func (sc *sessionConn) close() {
	sc.cancel()
	_ = sc.nc.Close()
}
