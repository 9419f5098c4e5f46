// This program creates, computes, locks, and unlocks timelock puzzle files.
package main

import (
	"github.com/ardanlabs/timelock/app/tooling/timelock/cmd"
)

func main() {
	cmd.Execute()
}
