// Package parser implements the consumer-side Stream Parser: a continuous
// demultiplex loop over the framed byte stream, dispatching to decoder
// façades and a dimension observer. Grounded on a teacher RTMP reader's
// straight read-loop shape (header then payload via io.ReadFull, no
// recursion or continuation-passing) but drastically simplified since this
// protocol has no chunk reassembly or per-stream state: every packet is
// already whole on the wire.
package parser

import (
	"github.com/qubzes/screenreflect/internal/bufpool"
	"github.com/qubzes/screenreflect/internal/consumer/decode"
	"github.com/qubzes/screenreflect/internal/logger"
	"github.com/qubzes/screenreflect/internal/metrics"
	"github.com/qubzes/screenreflect/internal/observer"
	"github.com/qubzes/screenreflect/internal/wire"
)

// Dispatcher routes decoded packets to decoder façades. Any field may be
// nil; the parser simply skips dispatch for kinds with no registered
// handler (spec §7 CacheMiss: the core keeps running even if a decoder has
// not been configured yet).
type Dispatcher struct {
	Video     decode.VideoDecoder
	Audio     decode.AudioDecoder
	Dimension *observer.Publisher[wire.Dimension]
}

// Parser reads framed packets from a wire.Reader and dispatches them
// synchronously on the caller's goroutine (the consumer's transport reader
// thread, per spec §5). Decoder façades must return quickly.
type Parser struct {
	r    *wire.Reader
	disp Dispatcher
}

// New creates a Parser reading from r and dispatching via disp.
func New(r *wire.Reader, disp Dispatcher) *Parser {
	return &Parser{r: r, disp: disp}
}

// Run reads and dispatches packets until a fatal error occurs (a
// TransportError or FramingError from the underlying reader) or stop
// returns true. It never returns a non-fatal error: unknown kinds are
// logged at debug and skipped by the reader itself.
func (p *Parser) Run(stop func() bool) error {
	for {
		if stop != nil && stop() {
			return nil
		}
		pkt, err := p.r.ReadPacket()
		if err != nil {
			return err
		}
		p.dispatch(pkt)
	}
}

// ReadOne reads and dispatches exactly one packet, for callers driving
// their own loop (e.g. tests, or a select-based reader thread).
func (p *Parser) ReadOne() error {
	pkt, err := p.r.ReadPacket()
	if err != nil {
		return err
	}
	p.dispatch(pkt)
	return nil
}

// dispatch routes pkt to the matching decoder façade. The payload buffer
// came from the shared pool (internal/wire.Reader.ReadPacket) and is always
// returned to it before dispatch returns, on every branch: decoder façades
// consume pkt.Payload synchronously and never retain the slice.
func (p *Parser) dispatch(pkt wire.Packet) {
	if !pkt.Kind.Known() {
		logger.Debug("skipped unknown packet kind", "kind", uint8(pkt.Kind))
		return
	}
	defer bufpool.Put(pkt.Payload)

	metrics.FramesParsed.WithLabelValues(pkt.Kind.String()).Inc()

	switch pkt.Kind {
	case wire.KindVideoConfig:
		if p.disp.Video == nil {
			return
		}
		if err := p.disp.Video.Configure(pkt.Payload); err != nil {
			logger.Debug("video decoder configure failed", "error", err)
		}
	case wire.KindAudioConfig:
		if p.disp.Audio == nil {
			return
		}
		if err := p.disp.Audio.Configure(pkt.Payload); err != nil {
			logger.Debug("audio decoder configure failed", "error", err)
		}
	case wire.KindVideo:
		if p.disp.Video == nil {
			return
		}
		// isKey is not recoverable from the wire alone for a cached replay
		// key frame mixed into the live stream; decoders tolerate a
		// mis-tagged non-key hint on a frame that happens to be a key
		// frame, per spec §7 CacheMiss semantics (decode failure is
		// non-fatal and self-heals on the next real key frame).
		if err := p.disp.Video.Decode(pkt.Payload, false); err != nil {
			logger.Debug("video decode failed", "error", err)
		}
	case wire.KindAudio:
		if p.disp.Audio == nil {
			return
		}
		if err := p.disp.Audio.Decode(pkt.Payload); err != nil {
			logger.Debug("audio decode failed", "error", err)
		}
	case wire.KindDimension:
		dim, ok := wire.DecodeDimension(pkt.Payload)
		if !ok {
			logger.Debug("malformed dimension payload", "len", len(pkt.Payload))
			return
		}
		if p.disp.Dimension != nil {
			p.disp.Dimension.Publish(dim)
		}
	}
}

// ResetDecoders resets both decoder façades to a known-empty state. The
// consumer binary calls this once the Transport Client has entered
// Receiving, before the parser reads any bytes (spec §4.3).
func ResetDecoders(disp Dispatcher) {
	if disp.Video != nil {
		disp.Video.Reset()
	}
	if disp.Audio != nil {
		disp.Audio.Reset()
	}
}

// IsFatal reports whether err returned from Run/ReadOne is session-fatal.
// Every error ReadPacket can return (TransientI/O or Framing) is fatal to
// the session by construction; this helper exists for call sites that want
// to express that intent explicitly rather than a bare nil check.
func IsFatal(err error) bool {
	return err != nil
}
