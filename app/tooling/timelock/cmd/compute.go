package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	computeAll   bool
	computeBatch uint64
)

var computeCmd = &cobra.Command{
	Use:   "compute [INDEX]",
	Short: "Compute a timelock chain to its terminal value",
	Long: `Compute the specified chain from its furthest checkpoint to its terminal
value, committing progress to the timelock file after every batch. With
--all, every chain is computed concurrently. Interrupting the command
loses at most the last uncommitted batch.`,
	Args: cobra.MaximumNArgs(1),
	RunE: computeRun,
}

func init() {
	computeCmd.Flags().BoolVar(&computeAll, "all", false, "Compute every chain concurrently.")
	computeCmd.Flags().Uint64Var(&computeBatch, "batch", 1_000_000, "Hashes per commit.")
	rootCmd.AddCommand(computeCmd)
}

func computeRun(cmd *cobra.Command, args []string) error {
	log, err := newLog()
	if err != nil {
		return err
	}
	defer log.Sync()

	s, err := openState(log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if computeAll {
		if err := s.ComputeAll(ctx, computeBatch); err != nil {
			return err
		}
	} else {
		if len(args) != 1 {
			return fmt.Errorf("a chain index is required unless --all is set")
		}
		index, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		if err := s.Compute(ctx, index, computeBatch); err != nil {
			return err
		}
	}

	fmt.Printf("timelock is %s\n", s.Status())
	for _, c := range s.Chains() {
		if terminal, ok := c.Terminal(); ok {
			fmt.Printf("chain %d terminal: %s\n", c.Index(), terminal)
		}
	}
	return nil
}
