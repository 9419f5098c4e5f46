package state

import (
	"context"
	"errors"

	"github.com/ardanlabs/timelock/foundation/timelock/keys"
)

// Unlock performs the solver side of the protocol: it drives the entry chain
// from its furthest known point through the full sequential computation,
// persisting progress after every batch, and derives the bounty key material
// from the confirmed terminal. There is nothing to parallelize here; the
// entry chain's strict step dependency is the delay being sold.
func (s *State) Unlock(ctx context.Context, batch uint64) (keys.Key, error) {
	if err := s.Compute(ctx, EntryChain, batch); err != nil {
		return keys.Key{}, err
	}

	s.mu.Lock()
	terminal, ok := s.chains[EntryChain].Terminal()
	s.mu.Unlock()

	if !ok {
		return keys.Key{}, errors.New("entry chain completed without a terminal")
	}

	key, err := keys.Derive(terminal)
	if err != nil {
		return keys.Key{}, err
	}

	s.evHandler("state: unlock: id[%s] address[%s]", s.ID(), key.Address)
	return key, nil
}
