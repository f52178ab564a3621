package client

import (
	"context"
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/ValentinKolb/dNet/rpc/serializer"
	"github.com/ValentinKolb/dNet/rpc/state"
	"github.com/ValentinKolb/dNet/rpc/transport"
	"sync"
	"time"
)

// GameClient couples a client transport with a replica of the server's network state
type GameClient struct {
	transport transport.IClientTransport
	state     *state.NetworkState
	events    transport.IObserver

	callMu  sync.Mutex // one Ping or Mirror round trip at a time
	pongs   chan struct{}
	mirrors chan string
}

// NewGameClient creates a new game client
// It takes a transport factory, a serializer and an optional observer that receives
// every transport event after the client handled it.
//
// Usage:
//
//	c := client.NewGameClient(tcp.NewTCPClientTransport, serializer.NewBinarySerializer(), nil)
//	if code := c.Connect(config); code != common.TransportConnected {
//		return fmt.Errorf("connect failed: %s", code)
//	}
//	defer c.Close()
func NewGameClient(
	newTransport transport.ClientFactory,
	serializer serializer.IRPCSerializer,
	events transport.IObserver,
) *GameClient {
	if events == nil {
		events = transport.ObserverFuncs{}
	}
	c := &GameClient{
		state:   state.NewNetworkState(),
		events:  events,
		pongs:   make(chan struct{}, 1),
		mirrors: make(chan string, 1),
	}
	c.transport = newTransport(serializer, &clientObserver{c: c})
	return c
}

// Connect connects to the server and returns the connect status
func (c *GameClient) Connect(config common.ClientConfig) common.TransportCode {
	return c.transport.Start(config)
}

// Close disconnects from the server. Calling Close twice is a no-op.
func (c *GameClient) Close() error {
	return c.transport.Stop()
}

// IsConnected reports whether the client holds an open connection
func (c *GameClient) IsConnected() bool {
	return c.transport.IsConnected()
}

// State returns the local replica of the network state
func (c *GameClient) State() *state.NetworkState {
	return c.state
}

// Stats returns the traffic counters of the connection
func (c *GameClient) Stats() (transport.ConnectionStats, error) {
	return c.transport.Stats()
}

// Send sends a message to the server
func (c *GameClient) Send(msg common.Message) error {
	return c.transport.Send(msg)
}

// Sync updates a field locally and sends the change to the server
func (c *GameClient) Sync(msg *common.Message) error {
	if err := c.state.Apply(msg); err != nil {
		return err
	}
	return c.transport.Send(*msg)
}

// Ping sends a ping and waits for the pong. It returns the round trip time.
func (c *GameClient) Ping(ctx context.Context) (time.Duration, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	drain(c.pongs)
	start := time.Now()
	if err := c.transport.Send(*common.NewPingMessage()); err != nil {
		return 0, err
	}
	if _, err := await(ctx, c.pongs); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Mirror sends text to the server and waits for the echo
func (c *GameClient) Mirror(ctx context.Context, text string) (string, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	drain(c.mirrors)
	if err := c.transport.Send(*common.NewMirrorMessage(text)); err != nil {
		return "", err
	}
	return await(ctx, c.mirrors)
}

// --------------------------------------------------------------------------
// Transport Observer
// --------------------------------------------------------------------------

// clientObserver receives the transport events of a GameClient
type clientObserver struct {
	c *GameClient
}

func (o *clientObserver) OnConnected(id uint32) {
	o.c.events.OnConnected(id)
}

func (o *clientObserver) OnMessage(id uint32, msg common.Message) {
	switch msg.MsgType {
	case common.MsgTNetworkState, common.MsgTSync:
		if err := o.c.state.Apply(&msg); err != nil {
			Logger.Warningf("Failed to apply %s message: %v", msg.MsgType, err)
		}
	case common.MsgTPong:
		offer(o.c.pongs, struct{}{})
	case common.MsgTMirror:
		offer(o.c.mirrors, msg.Text)
	}
	o.c.events.OnMessage(id, msg)
}

func (o *clientObserver) OnTransportStatus(id uint32, code common.TransportCode) {
	if code == common.TransportMaximumConnectionReached {
		Logger.Warningf("Server is full, stopping client")
		_ = o.c.transport.Stop()
	}
	o.c.events.OnTransportStatus(id, code)
}

func (o *clientObserver) OnError(id uint32, err error) {
	Logger.Warningf("Transport error: %v", err)
	o.c.events.OnError(id, err)
}

func (o *clientObserver) OnDisconnected(id uint32) {
	Logger.Infof("Disconnected from server")
	o.c.events.OnDisconnected(id)
}
