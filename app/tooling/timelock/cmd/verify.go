package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-verify every recorded value in a timelock",
	Long: `Rehash every recorded checkpoint, terminal, and recovered secret against
the chain computation. For chains that still have their IV this is a
complete audit of the file's contents.`,
	Args: cobra.NoArgs,
	RunE: verifyRun,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func verifyRun(cmd *cobra.Command, args []string) error {
	log, err := newLog()
	if err != nil {
		return err
	}
	defer log.Sync()

	s, err := openState(log)
	if err != nil {
		return err
	}

	if err := s.Verify(); err != nil {
		return err
	}

	fmt.Printf("%s verifies: every recorded value reproduces\n", timelockFile)
	return nil
}
