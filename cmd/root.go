package cmd

import (
	"fmt"
	"github.com/ValentinKolb/dNet/cmd/connect"
	"github.com/ValentinKolb/dNet/cmd/serve"
	"github.com/ValentinKolb/dNet/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dnet",
		Short: "framed game networking transport",
		Long: fmt.Sprintf(`dNet (v%s)

A client/server game networking transport written in Go. Messages are framed
over a byte stream, oversized messages are split into chunks and reassembled,
and the server enforces a maximum number of connections.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dNet",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dNet v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(connect.ConnectCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (binary, json, gob). Must be the same on server and client"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
