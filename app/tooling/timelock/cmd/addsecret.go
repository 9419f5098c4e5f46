package cmd

import (
	"fmt"

	"github.com/ardanlabs/timelock/foundation/timelock/kernel"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/spf13/cobra"
)

var addsecretIndex int

var addsecretCmd = &cobra.Command{
	Use:   "addsecret SECRET",
	Short: "Add a newly found secret to a timelock",
	Long: `Submit a candidate starting value for a sealed chain. The secret may be
hex or Base58Check encoded. It is accepted only if advancing it by the
chain length reproduces the chain's terminal value.`,
	Args: cobra.ExactArgs(1),
	RunE: addsecretRun,
}

func init() {
	addsecretCmd.Flags().IntVar(&addsecretIndex, "index", -1, "Chain to submit against; every chain is tried by default.")
	rootCmd.AddCommand(addsecretCmd)
}

func addsecretRun(cmd *cobra.Command, args []string) error {
	log, err := newLog()
	if err != nil {
		return err
	}
	defer log.Sync()

	candidate, err := parseSecret(args[0])
	if err != nil {
		return err
	}

	s, err := openState(log)
	if err != nil {
		return err
	}

	index := addsecretIndex
	if index < 0 {
		index, err = s.AddSecretAny(candidate)
	} else {
		err = s.AddSecret(index, candidate)
	}
	if err != nil {
		return err
	}

	fmt.Printf("success! chain %d recovered\n", index)
	return nil
}

// parseSecret decodes a secret given as Base58Check data or as hex, trying
// Base58Check first like the original tool.
func parseSecret(arg string) (kernel.Digest, error) {
	if payload, _, err := base58.CheckDecode(arg); err == nil {
		// Strip the compression suffix from WIF style payloads.
		if len(payload) == kernel.DigestSize+1 && payload[kernel.DigestSize] == 0x01 {
			payload = payload[:kernel.DigestSize]
		}
		if len(payload) == kernel.DigestSize {
			var d kernel.Digest
			copy(d[:], payload)
			return d, nil
		}
	}

	return parseDigest(arg)
}
