// Package base provides the protocol independent core of the dNet transport. It turns
// any stream oriented net.Conn into a framed, chunking message connection and builds
// the server and client transports on top of it. Protocol specific packages (tcp, unix)
// only supply connectors.
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     (dial, listen, socket options).
//
//   - Connection: one framed stream. A reader goroutine keeps exactly one read
//     outstanding, pushes the bytes into the receive ring buffer and processes every
//     complete frame before it reads again. A writer goroutine drains the send ring
//     buffer into the socket. Send frames and enqueues synchronously, so bytes reach
//     the socket in call order and the frames of a chunked message are never
//     interleaved with another message of the same connection. A message larger
//     than the send ring buffer is streamed frame by frame while the writer drains.
//
//   - serverTransport: accepts connections up to ServerConfig.MaxConnections. Surplus
//     sockets get a single MAXIMUM_CONNECTION_REACHED transport frame and are closed
//     without ever being registered. Registered connections live in an xsync.MapOf.
//
//   - clientTransport: dials with a bounded connect timeout and classifies the result
//     into CONNECTED, CONNECTION_TIMEOUT, CONNECTION_REFUSED or CONNECTION_ERROR.
//
// Reserved messages:
//
//	Ping is answered with Pong on the same connection and then forwarded.
//	Transport messages are reported through IObserver.OnTransportStatus; a
//	MAXIMUM_CONNECTION_REACHED code closes the connection.
//
// Thread Safety:
//
//	All public methods are thread-safe. Stop, Close and Disconnect never wait for a
//	connection goroutine, so they may be called from observer callbacks.
package base
