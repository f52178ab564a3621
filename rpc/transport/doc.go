// Package transport defines the interfaces of the dNet game transport. It provides a
// common contract that all stream transports implement, so game servers and clients
// are independent of the underlying socket type.
//
// Key Components:
//
//   - IServerTransport: accepts connections up to an admission limit, broadcasts or
//     targets messages and reports per-connection statistics.
//
//   - IClientTransport: connects to one server with a bounded connect timeout and
//     classifies the result into a common.TransportCode.
//
//   - IObserver / ObserverFuncs: event sink for connects, messages, transport status
//     codes, recoverable errors and disconnects.
//
// Implementations live in the base package (protocol independent) and are
// specialized by the tcp and unix packages.
package transport
