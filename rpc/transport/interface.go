package transport

import (
	"errors"
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/ValentinKolb/dNet/rpc/serializer"
	"net"
)

var (
	ErrNotRunning        = errors.New("transport: server is not running")
	ErrAlreadyRunning    = errors.New("transport: server is already running")
	ErrNotConnected      = errors.New("transport: client is not connected")
	ErrUnknownConnection = errors.New("transport: unknown connection")
	ErrConnectionClosed  = errors.New("transport: connection closed")
)

// --------------------------------------------------------------------------
// Observer
// --------------------------------------------------------------------------

// IObserver receives the events of a transport. All callbacks run on the goroutine of
// the connection they belong to, so events of one connection arrive in order.
// Callbacks may call Send, Stop and Disconnect on the transport.
type IObserver interface {
	// OnConnected is called once a connection is registered (server side)
	// or the client connected
	OnConnected(id uint32)
	// OnMessage is called for every complete message that is not handled by
	// the transport alone. Ping and Pong are forwarded after they are handled.
	OnMessage(id uint32, msg common.Message)
	// OnTransportStatus is called for connect results and received transport messages
	OnTransportStatus(id uint32, code common.TransportCode)
	// OnError reports recoverable errors (decode or reassembly failures)
	OnError(id uint32, err error)
	// OnDisconnected is called once after a connection is closed
	OnDisconnected(id uint32)
}

// ObserverFuncs implements IObserver with optional callbacks; nil funcs are skipped
type ObserverFuncs struct {
	Connected       func(id uint32)
	Message         func(id uint32, msg common.Message)
	TransportStatus func(id uint32, code common.TransportCode)
	Error           func(id uint32, err error)
	Disconnected    func(id uint32)
}

func (o ObserverFuncs) OnConnected(id uint32) {
	if o.Connected != nil {
		o.Connected(id)
	}
}

func (o ObserverFuncs) OnMessage(id uint32, msg common.Message) {
	if o.Message != nil {
		o.Message(id, msg)
	}
}

func (o ObserverFuncs) OnTransportStatus(id uint32, code common.TransportCode) {
	if o.TransportStatus != nil {
		o.TransportStatus(id, code)
	}
}

func (o ObserverFuncs) OnError(id uint32, err error) {
	if o.Error != nil {
		o.Error(id, err)
	}
}

func (o ObserverFuncs) OnDisconnected(id uint32) {
	if o.Disconnected != nil {
		o.Disconnected(id)
	}
}

// --------------------------------------------------------------------------
// Statistics
// --------------------------------------------------------------------------

// ConnectionStats is a snapshot of the traffic counters of one connection
type ConnectionStats struct {
	ID               uint32
	RemoteAddr       string
	BitsSent         int64
	BitsReceived     int64
	MessagesSent     int64
	MessagesReceived int64
	FramesSent       int64
	FramesReceived   int64
	PendingMessages  int
	ConnectedSince   int64 // unix milliseconds
}

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// IServerTransport is the interface for the server side of the game transport
type IServerTransport interface {
	// Start binds the listener and starts accepting connections in the background.
	// It returns ErrAlreadyRunning if the server is running.
	Start(config common.ServerConfig) error
	// Addr returns the bound listener address, or nil if not running
	Addr() net.Addr
	// Send broadcasts a message to every registered connection
	Send(msg common.Message) error
	// SendTo sends a message to one connection
	SendTo(id uint32, msg common.Message) error
	// Disconnect closes one connection
	Disconnect(id uint32) error
	// Connections returns the ids of all registered connections
	Connections() []uint32
	// Stats returns the traffic counters of one connection
	Stats(id uint32) (ConnectionStats, error)
	// Stop closes the listener and every connection. Calling Stop on a stopped
	// server is a no-op.
	Stop() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IClientTransport is the interface for the client side of the game transport
type IClientTransport interface {
	// Start connects to the server. The result is returned and also reported
	// through IObserver.OnTransportStatus.
	Start(config common.ClientConfig) common.TransportCode
	// Send sends a message to the server
	Send(msg common.Message) error
	// IsConnected reports whether the client holds an open connection
	IsConnected() bool
	// Stats returns the traffic counters of the connection
	Stats() (ConnectionStats, error)
	// Stop closes the connection. Calling Stop on a stopped client is a no-op.
	Stop() error
}

// --------------------------------------------------------------------------
// Factories
// --------------------------------------------------------------------------

// ServerFactory creates a server transport (e.g. tcp.NewTCPServerTransport)
type ServerFactory func(s serializer.IRPCSerializer, o IObserver) IServerTransport

// ClientFactory creates a client transport (e.g. tcp.NewTCPClientTransport)
type ClientFactory func(s serializer.IRPCSerializer, o IObserver) IClientTransport
