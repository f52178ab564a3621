// Package client implements the game client on top of a client transport.
// It keeps a local replica of the server's network state and offers round trip
// helpers for the reserved message kinds.
//
// Key Components:
//
//   - NewGameClient: Factory function that creates a client from a transport factory
//     (tcp.NewTCPClientTransport, unix.NewUnixClientTransport) and a serializer.
//
//   - State: the replica. NetworkState snapshots and Sync messages received from the
//     server are applied to it automatically.
//
//   - Ping / Mirror: send a ping or mirror message and wait for the reply.
//
// Usage Example:
//
//	config := common.DefaultClientConfig("localhost:7777")
//	c := client.NewGameClient(tcp.NewTCPClientTransport, serializer.NewBinarySerializer(), nil)
//
//	if code := c.Connect(config); code != common.TransportConnected {
//	  log.Fatalf("connect failed: %s", code)
//	}
//	defer c.Close()
//
//	rtt, _ := c.Ping(ctx)
//	echo, _ := c.Mirror(ctx, "hello")
//
// A client rejected by a full server receives MAXIMUM_CONNECTION_REACHED and stops
// itself; the status is forwarded to the optional observer.
//
// Thread Safety:
//
//	All methods are thread-safe. Ping and Mirror calls are serialized, replies are
//	matched in order.
package client
