package unix

import (
	"github.com/ValentinKolb/dNet/rpc/common"
	"net"
)

// upgradeConnection applies the SocketConf buffer sizes; TCP options do not apply
func upgradeConnection(conn net.Conn, config common.TransportConf) error {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil
	}

	if config.WriteBufferSize > 0 {
		if err := unixConn.SetWriteBuffer(config.WriteBufferSize); err != nil {
			return err
		}
	}
	if config.ReadBufferSize > 0 {
		if err := unixConn.SetReadBuffer(config.ReadBufferSize); err != nil {
			return err
		}
	}
	return nil
}
