// Package cmd implements the command-line interface of dNet. It provides a
// hierarchical command structure for running a game server and for talking to
// one as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Command for starting and configuring the game server
//   - connect: Client commands (ping, mirror, perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dnet -help for a list of all commands.
package cmd
