package connect

import (
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/dNet/cmd/util"
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Measure mirror round trips over a sweep of payload sizes",
		Long:    "Measure mirror round trips over a sweep of payload sizes. Sizes above the max buffer size exercise chunking.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfSizes = []int{16, 1024, common.DefaultMaxBufferSize, 8 * common.DefaultMaxBufferSize}
)

func init() {
	// add flags
	key := "sizes"
	perfTestCmd.Flags().String(key, "16,1024,8192,65536", util.WrapString("Comma separated payload sizes in bytes"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfSizes = perfSizes[:0]
	for _, s := range strings.Split(viper.GetString("sizes"), ",") {
		size, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || size < 0 {
			return fmt.Errorf("invalid payload size %q", s)
		}
		perfSizes = append(perfSizes, size)
	}
	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for dNet servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Println()

	fmt.Println("starting tests...")

	results := make(map[string]testing.BenchmarkResult)
	names := make([]string, 0, len(perfSizes))

	for _, size := range perfSizes {
		name := fmt.Sprintf("mirror-%d", size)
		text := strings.Repeat("x", size)

		result := testing.Benchmark(func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				ctx, cancel := roundTripContext()
				_, err := gameClient.Mirror(ctx, text)
				cancel()
				if err != nil {
					log.Printf("(%s) - error: %v\n", name, err)
					b.FailNow()
				}
			}
		})

		results[name] = result
		names = append(names, name)
		printResult(name, result)
	}

	if stats, err := gameClient.Stats(); err == nil {
		fmt.Printf("\nsent %d messages in %d frames, received %d messages in %d frames\n",
			stats.MessagesSent, stats.FramesSent, stats.MessagesReceived, stats.FramesReceived)
	}

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, names, results, util.GetClientConfig()); err != nil {
			return err
		}
	}
	return nil
}

func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, names []string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoint", "TimeoutSec", "MaxBufferSize", "Serializer", "Transport",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, test := range names {
		result := results[test]
		var nsPerOp, opsPerSec float64
		skipped := "true"

		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			config.Endpoint,
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Framing.MaxBufferSize),
			viper.GetString("serializer"),
			viper.GetString("transport"),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
