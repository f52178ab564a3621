//go:build !linux

package tcp

import (
	"github.com/ValentinKolb/dNet/rpc/transport/base"
	"syscall"
)

// setReusePort is a no-op where SO_REUSEPORT is not wired
func setReusePort(raw syscall.RawConn) error {
	base.Logger.Warningf("SO_REUSEPORT is only supported on linux, ignoring")
	return nil
}
