package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/ardanlabs/timelock/foundation/timelock/chain"
)

// Compute drives the specified chain from its furthest known point to its
// terminal value, committing a progress checkpoint after every batch. The
// operation is resumable: after an interruption nothing beyond the last
// uncommitted batch is lost.
func (s *State) Compute(ctx context.Context, index int, batch uint64) error {
	if batch == 0 {
		return &chain.MalformedInputError{Field: "batch", Reason: "must be greater than zero"}
	}

	for {
		if err := ctx.Err(); err != nil {
			s.evHandler("state: compute: chain[%d] CANCELLED", index)
			return err
		}

		step, done, err := s.computeBatch(index, batch)
		if err != nil {
			return err
		}

		s.evHandler("state: compute: chain[%d] step[%d] of [%d]", index, step, s.ChainLength())

		if done {
			return nil
		}
	}
}

// ComputeAll drives every chain to its terminal value, one goroutine per
// chain. The chains are fully independent, so this is the one place the
// system legitimately runs in parallel. Commits are serialized by the state
// lock.
func (s *State) ComputeAll(ctx context.Context, batch uint64) error {
	s.mu.Lock()
	n := len(s.chains)
	s.mu.Unlock()

	s.evHandler("state: computeall: started: chains[%d]", n)
	defer s.evHandler("state: computeall: completed")

	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)

		go func(index int) {
			defer wg.Done()
			if err := s.Compute(ctx, index, batch); err != nil {
				errs <- fmt.Errorf("chain %d: %w", index, err)
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	return <-errs
}

// computeBatch advances one chain by at most batch steps and commits the
// result, returning the step reached.
func (s *State) computeBatch(index int, batch uint64) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.chainAt(index)
	if err != nil {
		return 0, false, err
	}

	clone := c.Clone()
	step, _, done, err := clone.Advance(batch)
	if err != nil {
		return 0, false, err
	}

	if err := s.commit(index, clone); err != nil {
		return 0, false, err
	}

	return step, done, nil
}
