package base

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/ValentinKolb/dNet/rpc/framing"
	"github.com/ValentinKolb/dNet/rpc/serializer"
	"net"
	"os"
	"syscall"
	"time"
)

// classifyConnectError maps the result of a connect attempt to exactly one transport code
func classifyConnectError(err error) common.TransportCode {
	if err == nil {
		return common.TransportConnected
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return common.TransportConnectionTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return common.TransportConnectionTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return common.TransportConnectionRefused
	default:
		return common.TransportConnectionError
	}
}

// dialSafely runs the connector and turns a panic into an error
func dialSafely(ctx context.Context, connector IClientConnector, endpoint string) (conn net.Conn, err error) {
	defer func() {
		if r := recover(); r != nil {
			conn = nil
			err = fmt.Errorf("connect panicked: %v", r)
		}
	}()
	return connector.Connect(ctx, endpoint)
}

// encodeTransportFrame builds the single unchunked frame of a transport status message
func encodeTransportFrame(s serializer.IRPCSerializer, code common.TransportCode, limit int) ([]byte, error) {
	data, err := s.Serialize(*common.NewTransportMessage(code))
	if err != nil {
		return nil, err
	}
	frames, err := framing.EncodeFrames(data, 0, limit)
	if err != nil {
		return nil, err
	}
	if len(frames) != 1 {
		return nil, fmt.Errorf("transport message needs %d frames", len(frames))
	}
	return frames[0], nil
}

// rejectConnection writes a MAXIMUM_CONNECTION_REACHED frame to a socket that is never
// registered and closes it afterwards
func rejectConnection(conn net.Conn, s serializer.IRPCSerializer, limit int, timeout time.Duration) {
	defer conn.Close()

	frame, err := encodeTransportFrame(s, common.TransportMaximumConnectionReached, limit)
	if err != nil {
		Logger.Errorf("Failed to encode rejection for %s: %v", conn.RemoteAddr(), err)
		return
	}

	if timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			Logger.Warningf("Failed to set write deadline for %s: %v", conn.RemoteAddr(), err)
		}
	}
	if _, err := conn.Write(frame); err != nil {
		Logger.Warningf("Failed to write rejection to %s: %v", conn.RemoteAddr(), err)
	}
}
