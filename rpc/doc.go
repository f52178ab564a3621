// Package rpc provides the client/server game networking layer of dNet. It frames
// serialized messages over a byte stream, chunks messages that exceed the frame
// limit and keeps a replicated entity/component state in sync.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the system,
//     including the Message protocol, configuration structures, and logging.
//
//   - framing: Ring buffer, frame and chunk headers and the message assembler.
//     Pure byte logic without any I/O.
//
//   - transport: Observer and transport abstractions with stream implementations
//     (TCP, Unix sockets) built on a shared base.
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - state: Registry of networked entities, components and synchronized fields.
//
//   - server: Game server that pushes the state to new clients and dispatches
//     messages to registered handlers.
//
//   - client: Game client that applies received state and offers ping and mirror
//     round trips.
//
//   - metrics: Process-wide Prometheus counters of the transport.
package rpc
