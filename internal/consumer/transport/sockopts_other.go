//go:build !linux

package transport

import "net"

func setLowDelayHint(tc *net.TCPConn) error {
	return nil
}
