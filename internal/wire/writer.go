package wire

import (
	"encoding/binary"
	"io"
)

// Writer serializes packets onto an underlying io.Writer using the fixed
// 5-byte header. It holds no buffering of its own; callers that want batched
// flushes should wrap dst in a *bufio.Writer and flush after a drain batch,
// mirroring the producer's writer-thread drain loop.
type Writer struct {
	dst io.Writer
	hdr [HeaderLen]byte
}

// NewWriter wraps dst for framed packet writes.
func NewWriter(dst io.Writer) *Writer {
	return &Writer{dst: dst}
}

// WritePacket writes one fully framed packet: header then payload, as a
// single logical write sequence. A partial write at any point is reported
// to the caller as-is; callers treat any error here as fatal to the
// session (spec TransientI/O).
func (w *Writer) WritePacket(kind Kind, payload []byte) error {
	w.hdr[0] = byte(kind)
	binary.BigEndian.PutUint32(w.hdr[1:5], uint32(len(payload)))
	if _, err := w.dst.Write(w.hdr[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.dst.Write(payload)
	return err
}
