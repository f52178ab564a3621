package util

import (
	"fmt"
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/ValentinKolb/dNet/rpc/serializer"
	"github.com/ValentinKolb/dNet/rpc/transport"
	"github.com/ValentinKolb/dNet/rpc/transport/tcp"
	"github.com/ValentinKolb/dNet/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupFramingFlags adds the frame and buffer size flags shared by server and client
func SetupFramingFlags(cmd *cobra.Command) {
	key := "max-buffer-size"
	cmd.PersistentFlags().Int(key, common.DefaultMaxBufferSize, WrapString("Largest frame in bytes (headers included). Larger messages are split into chunks. Must be the same on server and client"))

	key = "ring-buffer-size"
	cmd.PersistentFlags().Int(key, common.DefaultRingBufferSize, WrapString("Capacity in bytes of the send and receive buffer of every connection"))
}

// SetupSocketFlags adds the socket option flags shared by server and client
func SetupSocketFlags(cmd *cobra.Command) {
	key := "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the OS write buffer of a socket (in KB, 0 keeps the system default)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the OS read buffer of a socket (in KB, 0 keeps the system default)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, -1, WrapString("The linger time (in seconds, -1 keeps the system default, only for tcp)"))
}

// SetupClientFlags adds the connection flags of a client command
func SetupClientFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, "localhost:7777", WrapString("The address of the dNet server (e.g. localhost:7777, /tmp/dnet.sock)"))

	key = "connect-timeout"
	cmd.PersistentFlags().Int(key, common.DefaultConnectTimeoutSecond, WrapString("How long to wait for the connection (in seconds)"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 5, WrapString("The write timeout in seconds, also bounds every round trip"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	SetupFramingFlags(cmd)
	SetupSocketFlags(cmd)
}

// InitConfig loads .env files and binds environment variables (DNET_<FLAG>)
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dnet")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetFramingConfig reads the framing configuration from viper
func GetFramingConfig() common.FramingConf {
	return common.FramingConf{
		MaxBufferSize:  viper.GetInt("max-buffer-size"),
		RingBufferSize: viper.GetInt("ring-buffer-size"),
	}
}

// GetTransportConfig reads the socket options from viper
func GetTransportConfig() common.TransportConf {
	return common.TransportConf{
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
			TCPReusePort:    viper.GetBool("transport-tcp-reuseport"),
		},
	}
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		Endpoint:             viper.GetString("endpoint"),
		ConnectTimeoutSecond: viper.GetInt("connect-timeout"),
		TimeoutSecond:        viper.GetInt("timeout"),
		Framing:              GetFramingConfig(),
		Transport:            GetTransportConfig(),
	}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetServerTransport returns the server transport factory based on configuration
func GetServerTransport() (transport.ServerFactory, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewTCPServerTransport, nil
	case "unix":
		return unix.NewUnixServerTransport, nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetClientTransport returns the client transport factory based on configuration
func GetClientTransport() (transport.ClientFactory, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewTCPClientTransport, nil
	case "unix":
		return unix.NewUnixClientTransport, nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
