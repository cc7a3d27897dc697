package transport

import (
	"net"
	"time"
)

// keepAliveIdle, keepAliveInterval and keepAliveCount are tuned for prompt
// dead-peer detection on a LAN, where round-trip times are low and a
// mirroring session has no reason to tolerate a long-lived half-open
// socket.
const (
	keepAliveIdle     = 5 * time.Second
	keepAliveInterval = 3 * time.Second
	keepAliveCount    = 3

	// sendBufferSize is sized to absorb a single compressed video frame
	// burst at a high peak bitrate without the kernel send buffer becoming
	// the bottleneck ahead of our own application-level queues.
	sendBufferSize = 4 << 20
)

// tuneSocket applies the producer's socket policy: Nagle disabled (every
// packet is sent as soon as it is framed, favoring latency over
// throughput), keepalive tuned for LAN dead-peer detection, and a send
// buffer large enough to absorb a burst.
func tuneSocket(conn net.Conn) error {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tc.SetNoDelay(true); err != nil {
		return err
	}
	if err := tc.SetKeepAlive(true); err != nil {
		return err
	}
	if err := setKeepAliveParams(tc, keepAliveIdle, keepAliveInterval, keepAliveCount); err != nil {
		return err
	}
	if err := tc.SetWriteBuffer(sendBufferSize); err != nil {
		return err
	}
	return nil
}
