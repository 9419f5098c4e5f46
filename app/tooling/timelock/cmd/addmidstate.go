package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var addmidstateCmd = &cobra.Command{
	Use:   "addmidstate INDEX STEP VALUE",
	Short: "Add a computed midstate to a timelock chain",
	Long: `Submit a midstate checkpoint for the specified chain. The value is
recomputed from the chain's known values and rejected if it does not
reproduce, so a corrupted or mistyped midstate can never enter the file.`,
	Args: cobra.ExactArgs(3),
	RunE: addmidstateRun,
}

func init() {
	rootCmd.AddCommand(addmidstateCmd)
}

func addmidstateRun(cmd *cobra.Command, args []string) error {
	log, err := newLog()
	if err != nil {
		return err
	}
	defer log.Sync()

	index, err := parseIndex(args[0])
	if err != nil {
		return err
	}

	step, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("parsing step %q: %w", args[1], err)
	}

	value, err := parseDigest(args[2])
	if err != nil {
		return err
	}

	s, err := openState(log)
	if err != nil {
		return err
	}

	// A submission at the final step is the chain's terminal value.
	if step == s.ChainLength() {
		if err := s.AddTerminal(index, value); err != nil {
			return err
		}
		fmt.Printf("chain %d: terminal accepted\n", index)
		return nil
	}

	if err := s.AddMidstate(index, step, value); err != nil {
		return err
	}

	fmt.Printf("chain %d: midstate at step %d accepted\n", index, step)
	return nil
}
