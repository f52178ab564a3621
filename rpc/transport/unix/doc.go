// Package unix implements the dNet transport over Unix domain sockets. It provides
// fast communication between a game server and clients running on the same machine,
// for example a headless server next to bots or a local test harness.
//
// This package extends the base transport layer with Unix socket-specific connectors
// while inheriting framing, chunking and admission control from the base package.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners (an existing socket file at the
//     endpoint path is removed first)
//
// Performance Characteristics:
//
//   - Reduced overhead: Eliminates TCP/IP stack processing for better performance
//   - Lower latency: Direct kernel-mediated IPC avoids network subsystem overhead
package unix
