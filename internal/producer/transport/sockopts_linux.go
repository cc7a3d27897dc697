//go:build linux

package transport

import (
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// setKeepAliveParams tunes the per-connection keepalive idle/interval/count
// via SyscallConn since net.TCPConn exposes no portable setter for these
// finer-grained knobs prior to Go's newer SetKeepAliveConfig API.
func setKeepAliveParams(tc *net.TCPConn, idle, interval time.Duration, count int) error {
	raw, err := tc.SyscallConn()
	if err != nil {
		return err
	}
	var setErr error
	err = raw.Control(func(fd uintptr) {
		if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, int(idle.Seconds())); e != nil {
			setErr = e
			return
		}
		if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, int(interval.Seconds())); e != nil {
			setErr = e
			return
		}
		if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPCNT, count); e != nil {
			setErr = e
			return
		}
	})
	if err != nil {
		return err
	}
	return setErr
}
