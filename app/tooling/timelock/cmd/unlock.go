package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var unlockBatch uint64

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Solve a locked timelock by running the sequential computation",
	Long: `Drive the entry chain from its furthest persisted checkpoint to its
terminal value, committing progress after every batch. The command can be
interrupted and rerun; it resumes where it left off. On completion the
bounty key material is printed.`,
	Args: cobra.NoArgs,
	RunE: unlockRun,
}

func init() {
	unlockCmd.Flags().Uint64Var(&unlockBatch, "batch", 1_000_000, "Hashes per commit.")
	rootCmd.AddCommand(unlockCmd)
}

func unlockRun(cmd *cobra.Command, args []string) error {
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

	key, err := s.Unlock(ctx, unlockBatch)
	if err != nil {
		return err
	}

	fmt.Println("success! the entry chain is fully computed")
	fmt.Printf("private key (wif): %s\n", key.WIF)
	fmt.Printf("secret:            %s\n", key.Secret)
	fmt.Printf("bounty address:    %s\n", key.Address)
	return nil
}
