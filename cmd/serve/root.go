package serve

import (
	"fmt"
	cmdUtil "github.com/ValentinKolb/dNet/cmd/util"
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/ValentinKolb/dNet/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"syscall"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dNet game server",
		Long:    `Start the dNet game server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DNET_<flag> (e.g. DNET_MAX_CONNECTIONS=32)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:7777", cmdUtil.WrapString("The address on which the server will listen (e.g. 0.0.0.0:7777, /tmp/dnet.sock)"))

	key = "max-connections"
	ServeCmd.PersistentFlags().Int(key, common.DefaultMaxConnections, cmdUtil.WrapString("Maximum number of simultaneous clients. Further clients receive MAXIMUM_CONNECTION_REACHED and are disconnected"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Write timeout in seconds (0 disables it)"))

	key = "transport-tcp-reuseport"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Whether to set SO_REUSEPORT on the listener (only for tcp on linux)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("If set, Prometheus metrics are served on http://<endpoint>/metrics (e.g. localhost:9100)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	cmdUtil.SetupFramingFlags(ServeCmd)
	cmdUtil.SetupSocketFlags(ServeCmd)
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.MaxConnections = viper.GetInt("max-connections")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Framing = cmdUtil.GetFramingConfig()
	serveCmdConfig.Transport = cmdUtil.GetTransportConfig()

	if err := serveCmdConfig.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return common.InitLoggers(serveCmdConfig.LogLevel, os.Stdout)
}

// run starts the game server and blocks until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewGameServer(*serveCmdConfig, t, s)
	if err := serv.Start(); err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig
	server.Logger.Infof("Received %s, shutting down", received)

	return serv.Stop()
}
