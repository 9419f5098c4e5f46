package chain

import (
	"fmt"

	"github.com/ardanlabs/timelock/foundation/timelock/kernel"
)

// MalformedInputError is returned when a submission is structurally invalid,
// such as a step outside the chain's range. No hashing was performed.
type MalformedInputError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed %s: %s", e.Field, e.Reason)
}

// =============================================================================

// VerificationError is returned when a submitted value does not reproduce
// under the chain computation. Both digests are carried so a caller can tell
// a typo from a genuine cryptographic mismatch.
type VerificationError struct {
	Step      uint64
	Submitted kernel.Digest
	Computed  kernel.Digest
}

// Error implements the error interface.
func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed at step %d: submitted %s, computed %s", e.Step, e.Submitted, e.Computed)
}

// =============================================================================

// IllegalTransitionError is returned when an operation is attempted from a
// lifecycle state that forbids it.
type IllegalTransitionError struct {
	Op       string
	Current  Status
	Required string
}

// Error implements the error interface.
func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("%s is illegal in state %s, requires %s", e.Op, e.Current, e.Required)
}
