// Package common provides core data structures and utilities shared across
// the dNet game transport. It defines the message model, configuration
// structures and logging used by the other packages.
//
// The package focuses on:
//   - Message definition for all traffic between game client and server
//   - Configuration structures for client and server components
//   - Custom logging implementation integrated with Dragonboat's logger facade
//
// Key Components:
//
//   - Message: Core data structure for all messages, with a flexible structure
//     that adapts to the message type. Includes factory methods for every kind.
//
//   - MessageType: Fixed variant set of message kinds. The transport handles the
//     reserved kinds (transport, ping, pong) itself and forwards all others.
//
//   - TransportCode: Status values surfaced to observers (connected, timeout,
//     refused, maximum connections reached, ...).
//
//   - ServerConfig / ClientConfig: Endpoint, admission limit, framing limits and
//     socket options.
//
//   - Logger: Custom logging implementation that plugs into Dragonboat's
//     logger package while providing consistent formatting across the application.
package common
