package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	// DefaultMaxBufferSize is the largest frame (headers + payload) written to the wire
	DefaultMaxBufferSize = 8 * 1024
	// DefaultRingBufferSize is the capacity of the per-connection send and receive buffers
	DefaultRingBufferSize = 256 * 1024
	// DefaultMaxConnections is the default admission limit of a server
	DefaultMaxConnections = 10
	// DefaultConnectTimeoutSecond bounds the client connect
	DefaultConnectTimeoutSecond = 10

	// frame header (5) + chunk header (4) + at least one payload byte
	minBufferSize = 10
	// largest frame a u16 length field can describe
	maxBufferSize = 5 + 0xFFFF
)

// --------------------------------------------------------------------------
// Shared configuration structs
// --------------------------------------------------------------------------

// FramingConf controls frame sizes and per-connection buffering
type FramingConf struct {
	// MaxBufferSize is the frame limit; messages larger than MaxBufferSize-5 are chunked
	MaxBufferSize int
	// RingBufferSize is the capacity of each ring buffer of a connection
	RingBufferSize int
}

// SocketConf holds OS socket buffer sizes (0 keeps the system default)
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific options
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
	TCPReusePort    bool
}

// TransportConf bundles the socket level options of a transport
type TransportConf struct {
	SocketConf
	TCPConf
}

// Validate checks the framing limits against the wire format
func (f *FramingConf) Validate() error {
	if f.MaxBufferSize < minBufferSize || f.MaxBufferSize > maxBufferSize {
		return fmt.Errorf("max buffer size must be between %d and %d, got %d", minBufferSize, maxBufferSize, f.MaxBufferSize)
	}
	// one slot of the ring is always kept free
	if f.RingBufferSize <= f.MaxBufferSize {
		return fmt.Errorf("ring buffer size (%d) must be larger than max buffer size (%d)", f.RingBufferSize, f.MaxBufferSize)
	}
	return nil
}

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters for the game server.
type ServerConfig struct {
	// Endpoint is the listen address (host:port for tcp, a path for unix)
	Endpoint string

	// MaxConnections is the admission limit
	MaxConnections int

	// TimeoutSecond is the write deadline per socket write (0 disables it)
	TimeoutSecond int64

	Framing   FramingConf
	Transport TransportConf

	// MetricsEndpoint serves Prometheus metrics if not empty
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// DefaultServerConfig returns a server configuration with sane defaults
func DefaultServerConfig(endpoint string) ServerConfig {
	return ServerConfig{
		Endpoint:       endpoint,
		MaxConnections: DefaultMaxConnections,
		TimeoutSecond:  5,
		Framing: FramingConf{
			MaxBufferSize:  DefaultMaxBufferSize,
			RingBufferSize: DefaultRingBufferSize,
		},
		Transport: TransportConf{
			TCPConf: TCPConf{TCPNoDelay: true, TCPLingerSec: -1},
		},
		LogLevel: "info",
	}
}

// Validate checks the server configuration
func (c *ServerConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("max connections must be at least 1, got %d", c.MaxConnections)
	}
	return c.Framing.Validate()
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Game Server")
	addField("Endpoint", c.Endpoint)
	addField("Max Connections", strconv.Itoa(c.MaxConnections))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	addSection("Framing")
	addField("Max Buffer Size", fmt.Sprintf("%d bytes", c.Framing.MaxBufferSize))
	addField("Ring Buffer Size", fmt.Sprintf("%d bytes", c.Framing.RingBufferSize))

	addSection("Socket")
	addField("TCP No Delay", strconv.FormatBool(c.Transport.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.Transport.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", c.Transport.TCPLingerSec))
	addField("TCP Reuse Port", strconv.FormatBool(c.Transport.TCPReusePort))
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.Transport.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Transport.ReadBufferSize))

	if c.MetricsEndpoint != "" {
		addSection("Metrics")
		addField("Endpoint", c.MetricsEndpoint)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all configuration parameters for a game client.
type ClientConfig struct {
	// Endpoint is the server address
	Endpoint string

	// ConnectTimeoutSecond bounds the connect (0 means DefaultConnectTimeoutSecond)
	ConnectTimeoutSecond int

	// TimeoutSecond is the write deadline per socket write (0 disables it)
	TimeoutSecond int

	Framing   FramingConf
	Transport TransportConf
}

// DefaultClientConfig returns a client configuration with sane defaults
func DefaultClientConfig(endpoint string) ClientConfig {
	return ClientConfig{
		Endpoint:             endpoint,
		ConnectTimeoutSecond: DefaultConnectTimeoutSecond,
		TimeoutSecond:        5,
		Framing: FramingConf{
			MaxBufferSize:  DefaultMaxBufferSize,
			RingBufferSize: DefaultRingBufferSize,
		},
		Transport: TransportConf{
			TCPConf: TCPConf{TCPNoDelay: true, TCPLingerSec: -1},
		},
	}
}

// ConnectTimeout returns the bounded connect duration
func (c *ClientConfig) ConnectTimeout() time.Duration {
	if c.ConnectTimeoutSecond <= 0 {
		return DefaultConnectTimeoutSecond * time.Second
	}
	return time.Duration(c.ConnectTimeoutSecond) * time.Second
}

// Validate checks the client configuration
func (c *ClientConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}
	return c.Framing.Validate()
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Connect Timeout", c.ConnectTimeout().String())
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	addSection("Framing")
	addField("Max Buffer Size", fmt.Sprintf("%d bytes", c.Framing.MaxBufferSize))
	addField("Ring Buffer Size", fmt.Sprintf("%d bytes", c.Framing.RingBufferSize))

	return sb.String()
}
