// Package cmd contains the timelock command line tool.
package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ardanlabs/timelock/foundation/logger"
	"github.com/ardanlabs/timelock/foundation/timelock/kernel"
	"github.com/ardanlabs/timelock/foundation/timelock/state"
	"github.com/ardanlabs/timelock/foundation/timelock/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	timelockFile string
	verbose      bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&timelockFile, "file", "f", "timelock.json", "Path to the timelock file.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every internal event.")
}

var rootCmd = &cobra.Command{
	Use:          "timelock",
	Short:        "Create and solve timelock puzzles backed by bounty addresses",
	SilenceUsage: true,
}

// Execute runs the selected subcommand.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// =============================================================================

// newLog constructs the tool's logger, quiet unless verbose was requested.
func newLog() (*zap.SugaredLogger, error) {
	level := zapcore.InfoLevel
	if !verbose {
		level = zapcore.WarnLevel
	}
	return logger.NewWithLevel("TIMELOCK", level)
}

// newConfig builds the state configuration for the persisted file, routing
// internal events through the logger.
func newConfig(log *zap.SugaredLogger) state.Config {
	return state.Config{
		Storer: storage.NewDisk(timelockFile),
		EvHandler: func(v string, args ...any) {
			log.Infof(v, args...)
		},
	}
}

// openState loads the timelock from the configured file.
func openState(log *zap.SugaredLogger) (*state.State, error) {
	s, err := state.New(newConfig(log))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", timelockFile, err)
	}
	return s, nil
}

// parseIndex converts a chain index argument.
func parseIndex(arg string) (int, error) {
	index, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("parsing chain index %q: %w", arg, err)
	}
	return index, nil
}

// parseDigest converts a 32 byte hex argument.
func parseDigest(arg string) (kernel.Digest, error) {
	d, err := kernel.DigestFromHex(arg)
	if err != nil {
		return kernel.Digest{}, fmt.Errorf("parsing value %q: %w", arg, err)
	}
	return d, nil
}

// parseDelay converts the original tool's delay syntax, a number with an
// s/m/h/d/w/y suffix, into a duration.
func parseDelay(arg string) (time.Duration, error) {
	if len(arg) < 2 {
		return 0, fmt.Errorf("delay %q must be a number with a s/m/h/d/w/y suffix", arg)
	}

	value, err := strconv.ParseFloat(arg[:len(arg)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("parsing delay %q: %w", arg, err)
	}

	var unit time.Duration
	switch arg[len(arg)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	case 'y':
		unit = 365 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown delay unit %q, must be one of s/m/h/d/w/y", arg[len(arg)-1])
	}

	return time.Duration(value * float64(unit)), nil
}
