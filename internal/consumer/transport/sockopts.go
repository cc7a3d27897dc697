package transport

import "net"

// tuneSocket applies the consumer's socket policy: Nagle disabled, plus a
// responsive-data scheduling hint where the platform supports one (spec
// §4.3, mirroring the producer).
func tuneSocket(conn net.Conn) error {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tc.SetNoDelay(true); err != nil {
		return err
	}
	return setLowDelayHint(tc)
}
