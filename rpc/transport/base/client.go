package base

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/ValentinKolb/dNet/rpc/serializer"
	"github.com/ValentinKolb/dNet/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"net"
	"sync"
	"time"
)

var Logger = logger.GetLogger("transport/rpc")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection, bounded by ctx
	Connect(ctx context.Context, endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.TransportConf) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector  IClientConnector
	serializer serializer.IRPCSerializer
	observer   transport.IObserver

	mu         sync.Mutex // protects conn and cancelDial
	conn       *Connection
	cancelDial context.CancelFunc // set while a connect is in flight
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector.
// A nil observer ignores all events.
func NewBaseClientTransport(connector IClientConnector, s serializer.IRPCSerializer, o transport.IObserver) transport.IClientTransport {
	if o == nil {
		o = transport.ObserverFuncs{}
	}
	return &clientTransport{
		connector:  connector,
		serializer: s,
		observer:   o,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Start(config common.ClientConfig) common.TransportCode {
	code, c := t.connect(config)
	t.observer.OnTransportStatus(0, code)

	if c != nil {
		c.start()
	}
	return code
}

func (t *clientTransport) Send(msg common.Message) error {
	c := t.current()
	if c == nil {
		return transport.ErrNotConnected
	}
	return c.Send(msg)
}

func (t *clientTransport) IsConnected() bool {
	c := t.current()
	return c != nil && !c.IsClosed()
}

func (t *clientTransport) Stats() (transport.ConnectionStats, error) {
	c := t.current()
	if c == nil {
		return transport.ConnectionStats{}, transport.ErrNotConnected
	}
	return c.Stats(), nil
}

func (t *clientTransport) Stop() error {
	t.mu.Lock()
	if t.cancelDial != nil {
		t.cancelDial()
		t.cancelDial = nil
	}
	c := t.conn
	t.conn = nil
	t.mu.Unlock()

	if c == nil {
		return nil
	}
	Logger.Infof("Stopping %s client", t.connector.GetName())
	return c.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// current returns the open connection or nil
func (t *clientTransport) current() *Connection {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

// connect dials the server and registers the connection. The returned connection
// (nil on failure) still has to be started. The dial runs without holding mu, a
// concurrent Stop cancels it.
func (t *clientTransport) connect(config common.ClientConfig) (common.TransportCode, *Connection) {
	if err := config.Validate(); err != nil {
		Logger.Errorf("Invalid client config: %v", err)
		return common.TransportConnectionError, nil
	}

	t.mu.Lock()
	if (t.conn != nil && !t.conn.IsClosed()) || t.cancelDial != nil {
		t.mu.Unlock()
		return common.TransportAlreadyConnected, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout())
	t.cancelDial = cancel
	t.mu.Unlock()
	defer cancel()

	start := time.Now()
	conn, err := dialSafely(ctx, t.connector, config.Endpoint)
	if err == nil {
		// Upgrade the connection with protocol-specific settings
		if err = t.connector.UpgradeConnection(conn, config.Transport); err != nil {
			_ = conn.Close()
			conn = nil
			err = fmt.Errorf("failed to upgrade connection: %w", err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancelDial == nil {
		// Stop was called while dialing
		if conn != nil {
			_ = conn.Close()
		}
		Logger.Infof("Connect to %s via %s aborted by Stop", config.Endpoint, t.connector.GetName())
		return common.TransportConnectionError, nil
	}
	t.cancelDial = nil

	code := classifyConnectError(err)
	if code != common.TransportConnected {
		Logger.Warningf("Failed to connect to %s via %s: %s (%v)", config.Endpoint, t.connector.GetName(), code, err)
		return code, nil
	}

	writeTimeout := time.Duration(config.TimeoutSecond) * time.Second
	c := newConnection(0, conn, config.Framing, writeTimeout, t.serializer, t.observer, func(c *Connection) {
		t.mu.Lock()
		if t.conn == c {
			t.conn = nil
		}
		t.mu.Unlock()
	})
	t.conn = c

	Logger.Infof("Connected to %s via %s in %s", config.Endpoint, t.connector.GetName(), time.Since(start))
	return code, c
}
