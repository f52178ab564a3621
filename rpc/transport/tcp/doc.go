// Package tcp implements the TCP transport of dNet. It provides the base package's
// connector interfaces for TCP sockets; framing, chunking and admission control are
// inherited from the base package.
//
// Key Components:
//
//   - clientConnector: dials with a context so the connect timeout of the client
//     transport applies.
//
//   - serverConnector: listens through a net.ListenConfig whose Control hook sets
//     SO_REUSEPORT (linux) when TCPConf.TCPReusePort is enabled.
//
// Accepted and dialed connections are tuned with the TCPConf and SocketConf options
// (no delay, keep alive, linger, socket buffer sizes).
package tcp
