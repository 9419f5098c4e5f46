// Package chain implements the lifecycle of a single timelock chain. A chain
// starts Seeded with a random IV, collects verified midstate checkpoints,
// becomes Computed once its terminal value is confirmed, is Sealed by the
// aggregate lock which strips the IV, and is Recovered when someone later
// proves they rediscovered the starting value. Every submission is recomputed
// before it is accepted, never trusted.
package chain

import (
	"fmt"
	"sort"

	"github.com/ardanlabs/timelock/foundation/timelock/kernel"
)

// Status represents the lifecycle state of a chain. The state is derived
// from which fields are present, so a chain can never hold an inconsistent
// combination.
type Status string

// The set of lifecycle states for a chain.
const (
	StatusSeeded       Status = "seeded"
	StatusCheckpointed Status = "checkpointed"
	StatusComputed     Status = "computed"
	StatusSealed       Status = "sealed"
	StatusRecovered    Status = "recovered"
)

// =============================================================================

// Chain represents one hash chain inside a timelock. The zero value is not
// usable; construct with New or Load.
type Chain struct {
	index       int
	length      uint64
	iv          *kernel.Digest
	checkpoints map[uint64]kernel.Digest
	terminal    *kernel.Digest
	recovered   *kernel.Digest
}

// New constructs a Seeded chain with a freshly drawn random IV.
func New(index int, length uint64) (*Chain, error) {
	if length == 0 {
		return nil, &MalformedInputError{Field: "length", Reason: "must be greater than zero"}
	}

	iv, err := kernel.NewIV()
	if err != nil {
		return nil, err
	}

	c := Chain{
		index:       index,
		length:      length,
		iv:          &iv,
		checkpoints: make(map[uint64]kernel.Digest),
	}

	return &c, nil
}

// Load reconstructs a chain from persisted values, checking structural
// consistency. Checkpoint contents are not rehashed here since they were
// verified when accepted; use Verify for a full audit.
func Load(index int, length uint64, iv *kernel.Digest, checkpoints map[uint64]kernel.Digest, terminal *kernel.Digest, recovered *kernel.Digest) (*Chain, error) {
	if length == 0 {
		return nil, &MalformedInputError{Field: "length", Reason: "must be greater than zero"}
	}

	for step := range checkpoints {
		if step == 0 || step >= length {
			return nil, &MalformedInputError{Field: "checkpoint step", Reason: fmt.Sprintf("step %d outside the range 1..%d", step, length-1)}
		}
	}

	if iv == nil && terminal == nil {
		return nil, &MalformedInputError{Field: "chain", Reason: "no iv and no terminal, chain is unrecoverable"}
	}
	if recovered != nil && terminal == nil {
		return nil, &MalformedInputError{Field: "recovered_secret", Reason: "present without a terminal to verify against"}
	}

	cps := make(map[uint64]kernel.Digest, len(checkpoints))
	for step, value := range checkpoints {
		cps[step] = value
	}

	c := Chain{
		index:       index,
		length:      length,
		iv:          cloneDigest(iv),
		checkpoints: cps,
		terminal:    cloneDigest(terminal),
		recovered:   cloneDigest(recovered),
	}

	return &c, nil
}

// =============================================================================

// Index returns the chain's position inside its timelock.
func (c *Chain) Index() int {
	return c.index
}

// Length returns the total number of evaluations from IV to terminal.
func (c *Chain) Length() uint64 {
	return c.length
}

// IV returns the initialization vector if it is still present.
func (c *Chain) IV() (kernel.Digest, bool) {
	if c.iv == nil {
		return kernel.Digest{}, false
	}
	return *c.iv, true
}

// Terminal returns the terminal value if it has been confirmed.
func (c *Chain) Terminal() (kernel.Digest, bool) {
	if c.terminal == nil {
		return kernel.Digest{}, false
	}
	return *c.terminal, true
}

// RecoveredSecret returns the accepted recovered value if one exists.
func (c *Chain) RecoveredSecret() (kernel.Digest, bool) {
	if c.recovered == nil {
		return kernel.Digest{}, false
	}
	return *c.recovered, true
}

// Checkpoints returns a copy of the verified checkpoints.
func (c *Chain) Checkpoints() map[uint64]kernel.Digest {
	cps := make(map[uint64]kernel.Digest, len(c.checkpoints))
	for step, value := range c.checkpoints {
		cps[step] = value
	}
	return cps
}

// Status derives the lifecycle state from the fields present.
func (c *Chain) Status() Status {
	switch {
	case c.recovered != nil:
		return StatusRecovered
	case c.iv == nil:
		return StatusSealed
	case c.terminal != nil:
		return StatusComputed
	case len(c.checkpoints) > 0:
		return StatusCheckpointed
	default:
		return StatusSeeded
	}
}

// Progress returns the furthest step with a known value and that value. For a
// sealed chain there is no known starting point and ok is false.
func (c *Chain) Progress() (step uint64, value kernel.Digest, ok bool) {
	if c.terminal != nil {
		return c.length, *c.terminal, true
	}
	return c.furthest()
}

// Clone returns an independent deep copy of the chain.
func (c *Chain) Clone() *Chain {
	clone := Chain{
		index:       c.index,
		length:      c.length,
		iv:          cloneDigest(c.iv),
		checkpoints: c.Checkpoints(),
		terminal:    cloneDigest(c.terminal),
		recovered:   cloneDigest(c.recovered),
	}
	return &clone
}

// =============================================================================

// AddMidstate records a verified checkpoint at the specified step. The value
// is recomputed from the nearest earlier known point, which by composability
// is equivalent to recomputing from the IV. A Computed chain still accepts
// checkpoints so unlock progress can be persisted.
func (c *Chain) AddMidstate(step uint64, value kernel.Digest) error {
	switch c.Status() {
	case StatusSeeded, StatusCheckpointed, StatusComputed:
	default:
		return &IllegalTransitionError{Op: "addmidstate", Current: c.Status(), Required: "seeded, checkpointed or computed"}
	}

	if step == 0 || step >= c.length {
		return &MalformedInputError{Field: "step", Reason: fmt.Sprintf("step %d outside the range 1..%d", step, c.length-1)}
	}

	if err := c.verify(step, value); err != nil {
		return err
	}

	c.checkpoints[step] = value
	return nil
}

// SetTerminal records the chain's terminal value, a submission at
// step = length verified under the same rule as any checkpoint. Resubmitting
// the already confirmed terminal is a no-op.
func (c *Chain) SetTerminal(value kernel.Digest) error {
	switch c.Status() {
	case StatusSeeded, StatusCheckpointed:
	case StatusComputed:
		if *c.terminal == value {
			return nil
		}
		return &VerificationError{Step: c.length, Submitted: value, Computed: *c.terminal}
	default:
		return &IllegalTransitionError{Op: "set terminal", Current: c.Status(), Required: "seeded or checkpointed"}
	}

	if err := c.verify(c.length, value); err != nil {
		return err
	}

	c.terminal = &value
	return nil
}

// Seal strips the IV and working checkpoints from a Computed chain, leaving
// only the terminal. Once sealed the original IV exists nowhere in the chain
// and recovery requires redoing the full sequential computation from a
// rediscovered starting value.
func (c *Chain) Seal() error {
	if c.Status() != StatusComputed {
		return &IllegalTransitionError{Op: "seal", Current: c.Status(), Required: "computed"}
	}

	c.iv = nil
	c.checkpoints = make(map[uint64]kernel.Digest)
	return nil
}

// Reseed returns a Computed chain to its seeded form, discarding the
// checkpoints and terminal while keeping the IV. The aggregate lock applies
// this to the entry chain so the distributed file carries only the starting
// point and a solver must redo the full sequential computation.
func (c *Chain) Reseed() error {
	if c.Status() != StatusComputed {
		return &IllegalTransitionError{Op: "reseed", Current: c.Status(), Required: "computed"}
	}

	c.checkpoints = make(map[uint64]kernel.Digest)
	c.terminal = nil
	return nil
}

// AddSecret accepts a candidate starting value for a sealed chain. The
// candidate is accepted only if advancing it by the chain length reproduces
// the terminal. Resubmitting an accepted value is a no-op. A differing value
// that also reproduces the terminal is indistinguishable from the original
// and is accepted; preimage resistance is what makes forging one infeasible.
func (c *Chain) AddSecret(candidate kernel.Digest) error {
	switch c.Status() {
	case StatusSealed, StatusRecovered:
	default:
		return &IllegalTransitionError{Op: "addsecret", Current: c.Status(), Required: "sealed or recovered"}
	}

	if c.recovered != nil && *c.recovered == candidate {
		return nil
	}

	// The error carries the image of the candidate next to the recorded
	// terminal so the submitter can see exactly what their value produced.
	got := kernel.Advance(candidate, c.length)
	if got != *c.terminal {
		return &VerificationError{Step: c.length, Submitted: got, Computed: *c.terminal}
	}

	c.recovered = &candidate
	return nil
}

// Advance performs up to maxSteps further evaluations from the furthest known
// point, recording the result as a checkpoint or, on reaching the chain
// length, confirming the terminal. The returned done flag reports whether the
// terminal has been reached. Values produced here are verified by
// construction since they extend an already verified point.
func (c *Chain) Advance(maxSteps uint64) (step uint64, value kernel.Digest, done bool, err error) {
	if maxSteps == 0 {
		return 0, kernel.Digest{}, false, &MalformedInputError{Field: "steps", Reason: "must be greater than zero"}
	}

	baseStep, baseValue, ok := c.furthest()
	if !ok {
		return 0, kernel.Digest{}, false, &IllegalTransitionError{Op: "advance", Current: c.Status(), Required: "a chain with an iv or checkpoint"}
	}

	if baseStep == c.length {
		return c.length, *c.terminal, true, nil
	}

	m := maxSteps
	if remaining := c.length - baseStep; m > remaining {
		m = remaining
	}

	value = kernel.Advance(baseValue, m)
	step = baseStep + m

	// Progress is tracked as a rolling checkpoint: the point just advanced
	// from is dropped so long computations do not accumulate one checkpoint
	// per batch.
	delete(c.checkpoints, baseStep)

	if step < c.length {
		c.checkpoints[step] = value
		return step, value, false, nil
	}

	// Reaching the length either confirms a previously submitted terminal or
	// establishes it for the first time.
	if c.terminal != nil && *c.terminal != value {
		return 0, kernel.Digest{}, false, &VerificationError{Step: c.length, Submitted: value, Computed: *c.terminal}
	}
	c.terminal = &value

	return step, value, true, nil
}

// Verify rehashes every recorded checkpoint and the terminal against the
// nearest earlier known point. For a chain that still has its IV this is a
// complete audit of the recorded values.
func (c *Chain) Verify() error {
	steps := c.sortedCheckpointSteps()
	for _, step := range steps {
		if err := c.verify(step, c.checkpoints[step]); err != nil {
			return err
		}
	}

	if c.terminal != nil && c.iv != nil {
		if err := c.verify(c.length, *c.terminal); err != nil {
			return err
		}
	}

	if c.recovered != nil {
		if got := kernel.Advance(*c.recovered, c.length); got != *c.terminal {
			return &VerificationError{Step: c.length, Submitted: got, Computed: *c.terminal}
		}
	}

	return nil
}

// =============================================================================

// verify recomputes the value at the specified step from the nearest earlier
// known point and compares it against the submission.
func (c *Chain) verify(step uint64, value kernel.Digest) error {
	baseStep, baseValue, ok := c.nearestBefore(step)
	if !ok {
		return &IllegalTransitionError{Op: "verify", Current: c.Status(), Required: "a known value at or before the submitted step"}
	}

	got := kernel.Advance(baseValue, step-baseStep)
	if got != value {
		return &VerificationError{Step: step, Submitted: value, Computed: got}
	}

	return nil
}

// nearestBefore returns the known value at the greatest step not exceeding
// the specified step, excluding the step itself.
func (c *Chain) nearestBefore(step uint64) (uint64, kernel.Digest, bool) {
	var bestStep uint64
	var bestValue kernel.Digest
	found := false

	if c.iv != nil {
		bestStep, bestValue, found = 0, *c.iv, true
	}

	for s, v := range c.checkpoints {
		if s < step && (!found || s > bestStep) {
			bestStep, bestValue, found = s, v, true
		}
	}

	return bestStep, bestValue, found
}

// furthest returns the known value at the greatest step, including the
// terminal when present.
func (c *Chain) furthest() (uint64, kernel.Digest, bool) {
	if c.terminal != nil {
		return c.length, *c.terminal, true
	}

	bestStep, bestValue, found := c.nearestBefore(c.length)
	return bestStep, bestValue, found
}

// sortedCheckpointSteps returns the checkpoint steps in ascending order.
func (c *Chain) sortedCheckpointSteps() []uint64 {
	steps := make([]uint64, 0, len(c.checkpoints))
	for step := range c.checkpoints {
		steps = append(steps, step)
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i] < steps[j] })
	return steps
}

// cloneDigest copies an optional digest.
func cloneDigest(d *kernel.Digest) *kernel.Digest {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
