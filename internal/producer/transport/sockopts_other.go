//go:build !linux

package transport

import (
	"net"
	"time"
)

// setKeepAliveParams is a no-op on platforms without a portable syscall for
// fine-grained keepalive tuning; SetKeepAlive(true) from tuneSocket still
// applies the OS default keepalive behavior.
func setKeepAliveParams(tc *net.TCPConn, idle, interval time.Duration, count int) error {
	return nil
}
