//go:build linux

package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

// dscpLowDelay is the IPTOS_LOWDELAY (0x10) type-of-service value, used as
// a best-effort hint to intermediate routers that this stream prefers low
// latency over throughput.
const dscpLowDelay = 0x10

func setLowDelayHint(tc *net.TCPConn) error {
	raw, err := tc.SyscallConn()
	if err != nil {
		return err
	}
	// Best-effort: not all kernels/network namespaces permit IP_TOS on
	// every socket family, so a failure to set it is not surfaced as a
	// connection error.
	_ = raw.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TOS, dscpLowDelay)
	})
	return nil
}
