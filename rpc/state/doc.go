// Package state provides the registry of networked entities and components that a
// game server pushes to its clients.
//
// The server owns the authoritative NetworkState. New clients receive a full Snapshot
// right after connecting, later changes travel as Sync messages that address a single
// named field of a component. Clients feed both message kinds into Apply:
//
//	NetworkState  add unknown entries, update known ones, drop entries missing
//	              from the snapshot (components of dropped entities go with them)
//	Sync          store the field value of a known component
//
// Entity and component payloads are opaque bytes. The registry never interprets them.
//
// Thread Safety:
//
//	All methods are thread-safe. Reads are lock free (xsync.MapOf), writes are
//	serialized so cascading removals never leave orphaned components behind.
package state
