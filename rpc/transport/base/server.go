package base

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/ValentinKolb/dNet/rpc/metrics"
	"github.com/ValentinKolb/dNet/rpc/serializer"
	"github.com/ValentinKolb/dNet/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
	"math"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// acceptRetryDelay is the pause after a transient accept error
const acceptRetryDelay = 50 * time.Millisecond

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.TransportConf) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector  IServerConnector
	serializer serializer.IRPCSerializer
	observer   transport.IObserver

	mu         sync.Mutex // serializes Start and Stop
	running    atomic.Bool
	config     common.ServerConfig
	listener   net.Listener
	stopCh     chan struct{}
	acceptDone chan struct{}

	connections *xsync.MapOf[uint32, *Connection]
	lastID      atomic.Uint32 // ids are never reused, not even after a restart
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport. A nil observer ignores all events.
func NewBaseServerTransport(connector IServerConnector, s serializer.IRPCSerializer, o transport.IObserver) transport.IServerTransport {
	if o == nil {
		o = transport.ObserverFuncs{}
	}
	return &serverTransport{
		connector:   connector,
		serializer:  s,
		observer:    o,
		connections: xsync.NewMapOf[uint32, *Connection](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) Start(config common.ServerConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running.Load() {
		return transport.ErrAlreadyRunning
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	t.config = config
	t.listener = listener
	t.stopCh = make(chan struct{})
	t.acceptDone = make(chan struct{})
	t.running.Store(true)

	Logger.Infof("Starting %s server on %s (max %d connections)",
		t.connector.GetName(), listener.Addr(), config.MaxConnections)

	go t.acceptLoop(listener, config, t.stopCh, t.acceptDone)
	return nil
}

func (t *serverTransport) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running.Load() {
		return nil
	}
	return t.listener.Addr()
}

func (t *serverTransport) Send(msg common.Message) error {
	if !t.running.Load() {
		return transport.ErrNotRunning
	}

	// serialize once, every connection frames with its own message ids
	data, err := t.serializer.Serialize(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize %s message: %w", msg.MsgType, err)
	}

	var errs []error
	t.connections.Range(func(id uint32, c *Connection) bool {
		if err := c.sendRaw(data); err != nil {
			errs = append(errs, fmt.Errorf("connection %d: %w", id, err))
		}
		return true
	})
	return errors.Join(errs...)
}

func (t *serverTransport) SendTo(id uint32, msg common.Message) error {
	if !t.running.Load() {
		return transport.ErrNotRunning
	}
	c, ok := t.connections.Load(id)
	if !ok {
		return fmt.Errorf("%w: %d", transport.ErrUnknownConnection, id)
	}
	return c.Send(msg)
}

func (t *serverTransport) Disconnect(id uint32) error {
	c, ok := t.connections.LoadAndDelete(id)
	if !ok {
		return fmt.Errorf("%w: %d", transport.ErrUnknownConnection, id)
	}
	Logger.Infof("Disconnecting connection %d", id)
	return c.Close()
}

func (t *serverTransport) Connections() []uint32 {
	ids := make([]uint32, 0, t.connections.Size())
	t.connections.Range(func(id uint32, _ *Connection) bool {
		ids = append(ids, id)
		return true
	})
	slices.Sort(ids)
	return ids
}

func (t *serverTransport) Stats(id uint32) (transport.ConnectionStats, error) {
	c, ok := t.connections.Load(id)
	if !ok {
		return transport.ConnectionStats{}, fmt.Errorf("%w: %d", transport.ErrUnknownConnection, id)
	}
	return c.Stats(), nil
}

func (t *serverTransport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running.Load() {
		return nil
	}
	t.running.Store(false)

	close(t.stopCh)
	err := t.listener.Close()

	// the accept loop never calls into user code, waiting for it is safe from any callback
	<-t.acceptDone

	t.connections.Range(func(id uint32, c *Connection) bool {
		_ = c.Close()
		t.connections.Delete(id)
		return true
	})

	Logger.Infof("Stopped %s server", t.connector.GetName())

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close listener: %w", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// acceptLoop accepts connections until the listener is closed
func (t *serverTransport) acceptLoop(listener net.Listener, config common.ServerConfig, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-stopCh:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			Logger.Warningf("Accept error: %v", err)
			time.Sleep(acceptRetryDelay)
			continue
		}

		if !t.handleAccept(conn, listener, config) {
			return
		}
	}
}

// handleAccept admits or rejects one accepted socket.
// It returns false if the server cannot accept any further connection.
func (t *serverTransport) handleAccept(conn net.Conn, listener net.Listener, config common.ServerConfig) bool {
	timeout := time.Duration(config.TimeoutSecond) * time.Second

	// only this goroutine registers connections, so the check cannot be overtaken
	if t.connections.Size() >= config.MaxConnections {
		metrics.ConnectionsRejected.Inc()
		Logger.Warningf("Rejecting %s: maximum of %d connections reached", conn.RemoteAddr(), config.MaxConnections)
		go rejectConnection(conn, t.serializer, config.Framing.MaxBufferSize, timeout)
		return true
	}

	if t.lastID.Load() == math.MaxUint32 {
		Logger.Errorf("Connection ids exhausted, no longer accepting connections")
		_ = conn.Close()
		_ = listener.Close()
		return false
	}
	id := t.lastID.Add(1)

	if err := t.connector.UpgradeConnection(conn, config.Transport); err != nil {
		Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
		_ = conn.Close()
		return true
	}

	c := newConnection(id, conn, config.Framing, timeout, t.serializer, t.observer, func(c *Connection) {
		t.connections.Delete(c.id)
	})
	t.connections.Store(id, c)
	metrics.ConnectionsAccepted.Inc()
	Logger.Infof("Accepted connection %d from %s", id, conn.RemoteAddr())

	c.start()
	return true
}
