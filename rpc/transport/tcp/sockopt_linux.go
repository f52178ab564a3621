//go:build linux

package tcp

import (
	"golang.org/x/sys/unix"
	"syscall"
)

// setReusePort enables SO_REUSEPORT so several server processes can share one port
func setReusePort(raw syscall.RawConn) error {
	var sockErr error
	err := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
