package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/qubzes/screenreflect/internal/apperrors"
	"github.com/qubzes/screenreflect/internal/bufpool"
	"github.com/qubzes/screenreflect/internal/metrics"
)

// Reader demultiplexes a single framed byte stream into a straight loop of
// (header, payload) reads. There is no recursion and no continuation-passing:
// callers drive it one ReadPacket call at a time.
type Reader struct {
	src           io.Reader
	maxPayloadLen int
	hdr           [HeaderLen]byte
}

// NewReader wraps src for framed packet reads, bounding payload length to
// maxPayloadLen. A maxPayloadLen of 0 selects DefaultMaxPayloadLen.
func NewReader(src io.Reader, maxPayloadLen int) *Reader {
	if maxPayloadLen <= 0 {
		maxPayloadLen = DefaultMaxPayloadLen
	}
	return &Reader{src: src, maxPayloadLen: maxPayloadLen}
}

// ReadPacket reads exactly one header then length payload bytes. Known
// kinds return their payload verbatim. Unknown kinds (0x05-0xFF) are
// consumed and discarded via io.CopyN, and ReadPacket returns a Packet with
// a nil Payload and Known() false so the caller can skip dispatch without
// terminating the session.
//
// A short read on the header or payload is reported as a TransportError
// (spec TransientI/O). A length exceeding maxPayloadLen is reported as a
// FramingError before any payload bytes are consumed, and is fatal to the
// session.
func (r *Reader) ReadPacket() (Packet, error) {
	if _, err := io.ReadFull(r.src, r.hdr[:]); err != nil {
		return Packet{}, apperrors.NewTransportError("readHeader", err)
	}

	kind := Kind(r.hdr[0])
	length := binary.BigEndian.Uint32(r.hdr[1:5])

	if int64(length) > int64(r.maxPayloadLen) {
		metrics.FramingErrors.Inc()
		return Packet{}, apperrors.NewFramingError("readHeader",
			fmt.Errorf("payload length %d exceeds max %d", length, r.maxPayloadLen))
	}

	if !kind.Known() {
		if _, err := io.CopyN(io.Discard, r.src, int64(length)); err != nil {
			return Packet{}, apperrors.NewTransportError("skipUnknownPayload", err)
		}
		return Packet{Kind: kind}, nil
	}

	if length == 0 {
		return Packet{Kind: kind}, nil
	}

	// Pulled from the shared buffer pool rather than allocated fresh: on the
	// full-video-frame path this is the hottest allocation in the pipeline.
	// The caller is responsible for returning it via bufpool.Put once it is
	// done with the payload (the multiplexer and decoder façades both
	// consume it synchronously and never retain the caller's slice).
	payload := bufpool.Get(int(length))
	if _, err := io.ReadFull(r.src, payload); err != nil {
		bufpool.Put(payload)
		return Packet{}, apperrors.NewTransportError("readPayload", err)
	}
	return Packet{Kind: kind, Payload: payload}, nil
}

// MaxPayloadLen returns the configured sanity bound.
func (r *Reader) MaxPayloadLen() int {
	return r.maxPayloadLen
}
