package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/ardanlabs/timelock/foundation/timelock/kernel"
	"github.com/spf13/cobra"
)

var (
	benchmarkRuntime time.Duration
	benchmarkRuns    int
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Measure this machine's sequential hash rate",
	Long: `Measure how many chain evaluations per second this machine sustains. The
result is the rate to feed into create when this machine is the expected
unlocker.`,
	Args: cobra.NoArgs,
	RunE: benchmarkRun,
}

func init() {
	benchmarkCmd.Flags().DurationVarP(&benchmarkRuntime, "time", "t", time.Second, "Time per benchmark run.")
	benchmarkCmd.Flags().IntVarP(&benchmarkRuns, "runs", "n", 5, "Number of runs.")
	rootCmd.AddCommand(benchmarkCmd)
}

func benchmarkRun(cmd *cobra.Command, args []string) error {
	results, err := kernel.Benchmark(context.Background(), benchmarkRuntime, benchmarkRuns)
	if err != nil {
		return err
	}

	min, max, sum := results[0], results[0], 0.0
	for _, r := range results {
		if r < min {
			min = r
		}
		if r > max {
			max = r
		}
		sum += r
	}

	fmt.Println("min\tavg\tmax (Mhash/second)")
	fmt.Printf("%.3f\t%.3f\t%.3f\n", min/1_000_000, sum/float64(len(results))/1_000_000, max/1_000_000)
	return nil
}
