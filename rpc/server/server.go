package server

import (
	"fmt"
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/ValentinKolb/dNet/rpc/metrics"
	"github.com/ValentinKolb/dNet/rpc/serializer"
	"github.com/ValentinKolb/dNet/rpc/state"
	"github.com/ValentinKolb/dNet/rpc/transport"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"net"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
)

var Logger = logger.GetLogger("rpc")

// GameServer couples a server transport with the authoritative network state
// and a table of message handlers
type GameServer struct {
	config    common.ServerConfig
	transport transport.IServerTransport
	state     *state.NetworkState
	handlers  *xsync.MapOf[common.MessageType, HandlerFunc]

	mu      sync.Mutex // protects metrics
	metrics *metrics.Server
}

// NewGameServer creates a new game server
// It takes a config, a transport factory and a serializer as parameters.
// Mirror and Sync messages are handled by default.
//
// Usage:
//
//	s := server.NewGameServer(
//		config,
//		tcp.NewTCPServerTransport,
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Start(); err != nil {
//		panic(err)
//	}
func NewGameServer(
	config common.ServerConfig,
	newTransport transport.ServerFactory,
	serializer serializer.IRPCSerializer,
) *GameServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	s := &GameServer{
		config:   config,
		state:    state.NewNetworkState(),
		handlers: xsync.NewMapOf[common.MessageType, HandlerFunc](),
	}
	s.transport = newTransport(serializer, &serverObserver{srv: s})

	s.RegisterHandler(common.MsgTMirror, MirrorHandler)
	s.RegisterHandler(common.MsgTSync, SyncHandler)

	return s
}

// RegisterHandler sets the handler for a message type, replacing any previous one.
// A nil handler removes it.
func (s *GameServer) RegisterHandler(t common.MessageType, h HandlerFunc) {
	if h == nil {
		s.handlers.Delete(t)
		return
	}
	s.handlers.Store(t, h)
}

// Start binds the transport and, if configured, the metrics endpoint.
// It returns once the listener accepts connections.
func (s *GameServer) Start() error {
	Logger.Infof("Starting game server")
	Logger.Infof(s.config.String())

	if err := s.transport.Start(s.config); err != nil {
		return err
	}

	if s.config.MetricsEndpoint != "" {
		m, err := metrics.Serve(s.config.MetricsEndpoint)
		if err != nil {
			_ = s.transport.Stop()
			return err
		}
		s.mu.Lock()
		s.metrics = m
		s.mu.Unlock()
	}
	return nil
}

// Stop closes every connection, the listener and the metrics endpoint.
// Calling Stop on a stopped server is a no-op.
func (s *GameServer) Stop() error {
	err := s.transport.Stop()

	s.mu.Lock()
	m := s.metrics
	s.metrics = nil
	s.mu.Unlock()

	if m != nil {
		if mErr := m.Close(); mErr != nil && err == nil {
			err = fmt.Errorf("failed to close metrics endpoint: %w", mErr)
		}
	}
	return err
}

// Addr returns the bound address of the transport, or nil if not running
func (s *GameServer) Addr() net.Addr {
	return s.transport.Addr()
}

// State returns the authoritative network state
func (s *GameServer) State() *state.NetworkState {
	return s.state
}

// Broadcast sends a message to every connection
func (s *GameServer) Broadcast(msg common.Message) error {
	return s.transport.Send(msg)
}

// SendTo sends a message to one connection
func (s *GameServer) SendTo(id uint32, msg common.Message) error {
	return s.transport.SendTo(id, msg)
}

// Disconnect closes one connection
func (s *GameServer) Disconnect(id uint32) error {
	return s.transport.Disconnect(id)
}

// Connections returns the ids of all connections
func (s *GameServer) Connections() []uint32 {
	return s.transport.Connections()
}

// Stats returns the traffic counters of one connection
func (s *GameServer) Stats(id uint32) (transport.ConnectionStats, error) {
	return s.transport.Stats(id)
}

// Sync updates a field of a component and broadcasts the change
func (s *GameServer) Sync(componentID uuid.UUID, field string, value []byte) error {
	if err := s.state.SetField(componentID, field, value); err != nil {
		return err
	}
	return s.transport.Send(*common.NewSyncMessage(componentID, field, value))
}

// PushState sends a full snapshot of the network state to every connection
func (s *GameServer) PushState() error {
	return s.transport.Send(*s.state.Snapshot())
}

// --------------------------------------------------------------------------
// Transport Observer
// --------------------------------------------------------------------------

// serverObserver receives the transport events of a GameServer
type serverObserver struct {
	srv *GameServer
}

func (o *serverObserver) OnConnected(id uint32) {
	Logger.Infof("Client %d connected", id)

	// new clients start with the full state
	if err := o.srv.transport.SendTo(id, *o.srv.state.Snapshot()); err != nil {
		Logger.Warningf("Failed to send network state to client %d: %v", id, err)
	}
}

func (o *serverObserver) OnMessage(id uint32, msg common.Message) {
	h, ok := o.srv.handlers.Load(msg.MsgType)
	if !ok {
		Logger.Debugf("No handler for %s message from client %d", msg.MsgType, id)
		return
	}
	if err := h(o.srv, id, &msg); err != nil {
		Logger.Warningf("Handling %s message from client %d failed: %v", msg.MsgType, id, err)
	}
}

func (o *serverObserver) OnTransportStatus(id uint32, code common.TransportCode) {
	Logger.Infof("Client %d reported transport status %s", id, code)
}

func (o *serverObserver) OnError(id uint32, err error) {
	Logger.Warningf("Error on client %d: %v", id, err)
}

func (o *serverObserver) OnDisconnected(id uint32) {
	Logger.Infof("Client %d disconnected", id)
}
