package connect

import (
	"fmt"
	"github.com/ValentinKolb/dNet/cmd/util"
	"github.com/ValentinKolb/dNet/rpc/client"
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
)

var (
	gameClient *client.GameClient

	// ConnectCommands represents the client command group
	ConnectCommands = &cobra.Command{
		Use:                "connect",
		Short:              "Connect to a dNet server and exchange messages",
		PersistentPreRunE:  setupClient,
		PersistentPostRunE: closeClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add client flags to the connect command
	util.SetupClientFlags(ConnectCommands)

	// Add subcommands
	ConnectCommands.AddCommand(pingCmd)
	ConnectCommands.AddCommand(mirrorCmd)
	ConnectCommands.AddCommand(perfTestCmd)
}

// setupClient connects the game client
func setupClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := common.InitLoggers(viper.GetString("log-level"), os.Stderr); err != nil {
		return err
	}

	config := util.GetClientConfig()

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetClientTransport()
	if err != nil {
		return err
	}

	gameClient = client.NewGameClient(t, s, nil)
	if code := gameClient.Connect(*config); code != common.TransportConnected {
		return fmt.Errorf("failed to connect to %s: %s", config.Endpoint, code)
	}
	return nil
}

// closeClient disconnects the game client
func closeClient(_ *cobra.Command, _ []string) error {
	if gameClient == nil {
		return nil
	}
	return gameClient.Close()
}
