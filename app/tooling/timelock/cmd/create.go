package cmd

import (
	"fmt"

	"github.com/ardanlabs/timelock/foundation/timelock/state"
	"github.com/spf13/cobra"
)

var createChains int

var createCmd = &cobra.Command{
	Use:   "create DELAY RATE",
	Short: "Create a new timelock",
	Long: `Create a new timelock file. DELAY is the desired unlocking delay with a
s/m/h/d/w/y suffix, such as 2w. RATE is the estimated hash rate of the
unlocker in MHash/sec; run the benchmark command to measure this machine.`,
	Args: cobra.ExactArgs(2),
	RunE: createRun,
}

func init() {
	createCmd.Flags().IntVarP(&createChains, "chains", "n", 10, "Number of parallel chains.")
	rootCmd.AddCommand(createCmd)
}

func createRun(cmd *cobra.Command, args []string) error {
	log, err := newLog()
	if err != nil {
		return err
	}
	defer log.Sync()

	delay, err := parseDelay(args[0])
	if err != nil {
		return err
	}

	var rate float64
	if _, err := fmt.Sscanf(args[1], "%g", &rate); err != nil {
		return fmt.Errorf("parsing rate %q: %w", args[1], err)
	}
	hashesPerSec := rate * 1_000_000

	s, err := state.Create(newConfig(log), createChains, delay, hashesPerSec)
	if err != nil {
		return err
	}

	fmt.Printf("created %s: id %s, %d chains of %d hashes each\n", timelockFile, s.ID(), createChains, s.ChainLength())
	fmt.Println("now run the compute command for every chain, then lock")
	return nil
}
