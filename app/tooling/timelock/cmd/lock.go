package cmd

import (
	"fmt"
	"os"

	"github.com/ardanlabs/timelock/foundation/timelock/state"
	"github.com/ardanlabs/timelock/foundation/timelock/storage"
	"github.com/spf13/cobra"
)

var lockOutput string

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Convert a fully computed timelock into its locked, distributable form",
	Long: `Seal every chain except the entry chain, stripping their IVs for good, and
mark the timelock locked. With --output the locked form is written to a new
file and the original file keeps the creator's private copy; without it the
timelock file is locked in place and the stripped IVs are gone forever.`,
	Args: cobra.NoArgs,
	RunE: lockRun,
}

func init() {
	lockCmd.Flags().StringVarP(&lockOutput, "output", "o", "", "Write the locked form to this file instead of locking in place.")
	rootCmd.AddCommand(lockCmd)
}

func lockRun(cmd *cobra.Command, args []string) error {
	log, err := newLog()
	if err != nil {
		return err
	}
	defer log.Sync()

	target := timelockFile

	// Locking to a separate file is a copy followed by an in-place lock of
	// the copy, so the original keeps the creator's full record.
	if lockOutput != "" {
		if _, err := os.Stat(lockOutput); err == nil {
			return fmt.Errorf("output file %s already exists", lockOutput)
		}
		data, err := os.ReadFile(timelockFile)
		if err != nil {
			return fmt.Errorf("reading %s: %w", timelockFile, err)
		}
		if err := os.WriteFile(lockOutput, data, 0600); err != nil {
			return fmt.Errorf("writing %s: %w", lockOutput, err)
		}
		target = lockOutput
	}

	cfg := state.Config{
		Storer: storage.NewDisk(target),
		EvHandler: func(v string, args ...any) {
			log.Infof(v, args...)
		},
	}

	s, err := state.New(cfg)
	if err != nil {
		return fmt.Errorf("opening %s: %w", target, err)
	}

	if err := s.Lock(); err != nil {
		return err
	}

	fmt.Printf("locked %s: entry chain %d keeps its iv, all other ivs are gone\n", target, state.EntryChain)
	return nil
}
