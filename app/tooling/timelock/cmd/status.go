package cmd

import (
	"fmt"

	"github.com/ardanlabs/timelock/foundation/timelock/keys"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of every chain and its bounty address",
	Args:  cobra.NoArgs,
	RunE:  statusRun,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusRun(cmd *cobra.Command, args []string) error {
	log, err := newLog()
	if err != nil {
		return err
	}
	defer log.Sync()

	s, err := openState(log)
	if err != nil {
		return err
	}

	fmt.Printf("timelock %s: %s, %d chains of %d hashes\n", s.ID(), s.Status(), len(s.Chains()), s.ChainLength())

	for _, c := range s.Chains() {
		line := fmt.Sprintf("chain %d: %-12s", c.Index(), c.Status())

		if step, _, ok := c.Progress(); ok {
			line += fmt.Sprintf(" progress %d/%d", step, c.Length())
		}

		if terminal, ok := c.Terminal(); ok {
			key, err := keys.Derive(terminal)
			if err != nil {
				return fmt.Errorf("chain %d: %w", c.Index(), err)
			}
			line += fmt.Sprintf(" bounty %s", key.Address)
		}

		fmt.Println(line)
	}

	return nil
}
