// Package server implements the game server on top of a server transport.
// It owns the authoritative network state and routes received messages to
// handlers registered per message type.
//
// The package focuses on:
//   - Pushing a full NetworkState snapshot to every client right after it connected
//   - Dispatching messages through a handler table instead of rewritten method calls
//   - Broadcasting field updates (Sync) to all clients
//   - Optionally exposing Prometheus metrics next to the game endpoint
//
// Key Components:
//
//   - HandlerFunc: handles one received message. Errors are logged and never close
//     the connection.
//
//   - MirrorHandler: echoes mirror messages back to the sender (registered by default).
//
//   - SyncHandler: applies a client field update and relays it to every other client
//     (registered by default).
//
//   - NewGameServer: Factory function creating a server with the specified transport
//     factory and serializer.
//
// Usage Example:
//
//	config := common.DefaultServerConfig("0.0.0.0:7777")
//	config.MaxConnections = 16
//
//	s := server.NewGameServer(config, tcp.NewTCPServerTransport, serializer.NewBinarySerializer())
//	s.RegisterHandler(common.MsgTCustom, func(srv *server.GameServer, id uint32, msg *common.Message) error {
//	  return srv.Broadcast(*msg)
//	})
//
//	if err := s.Start(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//	defer s.Stop()
//
// Thread Safety:
//
//	The server is thread-safe. Handlers run on the goroutine of the connection the
//	message arrived on, so messages of one client are handled in order while
//	different clients are handled concurrently.
package server
