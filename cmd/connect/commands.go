package connect

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dNet/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strconv"
	"strings"
	"time"
)

var (
	pingCmd = &cobra.Command{
		Use:   "ping [count]",
		Short: "Send pings and print the round trip times",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("invalid count %q", args[0])
				}
				count = n
			}

			samples := make([]time.Duration, 0, count)
			for i := 0; i < count; i++ {
				ctx, cancel := roundTripContext()
				rtt, err := gameClient.Ping(ctx)
				cancel()
				if err != nil {
					return fmt.Errorf("ping %d failed: %w", i+1, err)
				}
				samples = append(samples, rtt)
				fmt.Printf("pong %d: %s\n", i+1, rtt)
			}
			if count > 1 {
				fmt.Println(util.NewRoundTripStats(samples))
			}
			return nil
		},
	}

	mirrorCmd = &cobra.Command{
		Use:   "mirror [text]",
		Short: "Send text and print the echo of the server",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "" {
				text = "hello"
			}

			ctx, cancel := roundTripContext()
			defer cancel()

			echo, err := gameClient.Mirror(ctx, text)
			if err != nil {
				return err
			}
			fmt.Println(echo)
			return nil
		},
	}
)

// roundTripContext bounds a single round trip by the configured timeout
func roundTripContext() (context.Context, context.CancelFunc) {
	timeout := time.Duration(viper.GetInt("timeout")) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
