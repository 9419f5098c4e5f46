// Package state is the core API for a timelock and implements all the
// aggregate level business rules. A timelock owns an ordered set of chains
// created together, applies lifecycle operations to them, and commits every
// accepted mutation to storage before it becomes visible, so a rejection or a
// crash never changes what is on disk.
package state

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ardanlabs/timelock/foundation/timelock/chain"
	"github.com/ardanlabs/timelock/foundation/timelock/kernel"
	"github.com/ardanlabs/timelock/foundation/timelock/storage"
	"github.com/google/uuid"
)

// Aggregate level transition errors.
var (
	ErrLocked    = errors.New("timelock is locked")
	ErrNotLocked = errors.New("timelock is not locked")
	ErrExists    = errors.New("timelock file already exists")
	ErrNotFound  = errors.New("timelock file does not exist")
)

// Status represents the distribution state of the whole timelock.
type Status string

// The set of timelock states. Draft while the creator is still computing,
// Unlocked once every chain is computed, Locked after the IVs of the
// non-entry chains have been stripped for distribution.
const (
	StatusDraft    Status = Status(storage.StatusDraft)
	StatusUnlocked Status = Status(storage.StatusUnlocked)
	StatusLocked   Status = Status(storage.StatusLocked)
)

// EntryChain is the index of the chain whose IV survives locking.
const EntryChain = 0

// =============================================================================

// EventHandler defines a function that is called when events occur in the
// processing of the timelock.
type EventHandler func(v string, args ...any)

// Storer represents the behavior required for persisting the timelock
// document. Replace must be atomic: either the full new document is on disk
// afterwards or the old one still is.
type Storer interface {
	Exists() bool
	Load() (storage.Document, error)
	Replace(storage.Document) error
}

// Config represents the configuration required to construct a timelock state.
type Config struct {
	Storer    Storer
	EvHandler EventHandler
}

// State manages a timelock and its chains. All exported methods are safe for
// concurrent use; every mutation runs as a load-validate-commit cycle under
// the state's lock.
type State struct {
	mu        sync.Mutex
	storer    Storer
	evHandler EventHandler

	id     string
	status Status
	length uint64
	chains []*chain.Chain
}

// New loads an existing timelock from storage.
func New(cfg Config) (*State, error) {
	s, err := construct(cfg)
	if err != nil {
		return nil, err
	}

	if !cfg.Storer.Exists() {
		return nil, ErrNotFound
	}

	doc, err := cfg.Storer.Load()
	if err != nil {
		return nil, fmt.Errorf("loading timelock: %w", err)
	}

	chains := make([]*chain.Chain, 0, len(doc.Chains))
	for _, cd := range doc.Chains {
		c, err := cd.ToChain(doc.ChainLength)
		if err != nil {
			return nil, fmt.Errorf("loading timelock: %w", err)
		}
		chains = append(chains, c)
	}

	s.id = doc.ID
	s.status = Status(doc.Status)
	s.length = doc.ChainLength
	s.chains = chains

	return s, nil
}

// Create constructs a brand new timelock with n freshly seeded chains and
// persists it. The per chain length spreads the total work across the chains:
// length = round(duration * hashesPerSec / n). Creation can then compute all
// chains in parallel while a solver faces one chain of the same length.
func Create(cfg Config, n int, duration time.Duration, hashesPerSec float64) (*State, error) {
	s, err := construct(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Storer.Exists() {
		return nil, ErrExists
	}
	if n < 1 {
		return nil, &chain.MalformedInputError{Field: "chains", Reason: "must create at least one chain"}
	}

	length := uint64(math.Round(duration.Seconds() * hashesPerSec / float64(n)))
	if length == 0 {
		return nil, &chain.MalformedInputError{Field: "length", Reason: "duration and hash rate produce an empty chain"}
	}

	chains := make([]*chain.Chain, 0, n)
	for i := 0; i < n; i++ {
		c, err := chain.New(i, length)
		if err != nil {
			return nil, err
		}
		chains = append(chains, c)
	}

	s.id = uuid.NewString()
	s.status = StatusDraft
	s.length = length
	s.chains = chains

	if err := s.persist(); err != nil {
		return nil, err
	}

	s.evHandler("state: create: id[%s] chains[%d] length[%d]", s.id, n, length)

	return s, nil
}

// construct builds the bare state value and applies defaults.
func construct(cfg Config) (*State, error) {
	if cfg.Storer == nil {
		return nil, errors.New("a storer is required")
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	s := State{
		storer:    cfg.Storer,
		evHandler: ev,
	}

	return &s, nil
}

// =============================================================================

// ID returns the timelock's unique id.
func (s *State) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.id
}

// Status returns the distribution state of the timelock.
func (s *State) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

// ChainLength returns the per chain number of evaluations.
func (s *State) ChainLength() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.length
}

// Chains returns independent copies of the chains in index order.
func (s *State) Chains() []*chain.Chain {
	s.mu.Lock()
	defer s.mu.Unlock()

	chains := make([]*chain.Chain, 0, len(s.chains))
	for _, c := range s.chains {
		chains = append(chains, c.Clone())
	}
	return chains
}

// Document returns the persisted form of the current state.
func (s *State) Document() storage.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.document()
}

// =============================================================================

// AddMidstate submits a checkpoint value for the specified chain. The value
// is recomputed and checked before anything changes, and the accepted state
// is on disk before this call returns.
func (s *State) AddMidstate(index int, step uint64, value kernel.Digest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.chainAt(index)
	if err != nil {
		return err
	}

	clone := c.Clone()
	if err := clone.AddMidstate(step, value); err != nil {
		return err
	}

	if err := s.commit(index, clone); err != nil {
		return err
	}

	s.evHandler("state: addmidstate: chain[%d] step[%d] value[%s]", index, step, value)
	return nil
}

// AddTerminal submits the terminal value for the specified chain, verified
// like a checkpoint at step = length.
func (s *State) AddTerminal(index int, value kernel.Digest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.chainAt(index)
	if err != nil {
		return err
	}

	clone := c.Clone()
	if err := clone.SetTerminal(value); err != nil {
		return err
	}

	if err := s.commit(index, clone); err != nil {
		return err
	}

	s.evHandler("state: addterminal: chain[%d] value[%s]", index, value)
	return nil
}

// AddSecret submits a candidate starting value for the specified sealed
// chain. Resubmitting an accepted value is a no-op.
func (s *State) AddSecret(index int, candidate kernel.Digest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.chainAt(index)
	if err != nil {
		return err
	}

	clone := c.Clone()
	if err := clone.AddSecret(candidate); err != nil {
		return err
	}

	if err := s.commit(index, clone); err != nil {
		return err
	}

	s.evHandler("state: addsecret: chain[%d] accepted", index)
	return nil
}

// AddSecretAny tries a candidate against every sealed chain and accepts it on
// the first chain it verifies for, returning that chain's index.
func (s *State) AddSecretAny(candidate kernel.Digest) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for index, c := range s.chains {
		clone := c.Clone()
		if err := clone.AddSecret(candidate); err != nil {
			lastErr = err
			continue
		}

		if err := s.commit(index, clone); err != nil {
			return 0, err
		}

		s.evHandler("state: addsecret: chain[%d] accepted", index)
		return index, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no chains to match the secret against")
	}
	return 0, fmt.Errorf("secret does not match any chain: %w", lastErr)
}

// =============================================================================

// Lock converts a fully computed timelock into its distributable form. Every
// chain except the entry chain is sealed, stripping its IV for good, and the
// status becomes Locked. The operation commits atomically or not at all.
func (s *State) Lock() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusLocked {
		return ErrLocked
	}

	for _, c := range s.chains {
		if c.Status() != chain.StatusComputed {
			return fmt.Errorf("chain %d is %s, every chain must be computed before locking", c.Index(), c.Status())
		}
	}

	chains := make([]*chain.Chain, 0, len(s.chains))
	for _, c := range s.chains {
		clone := c.Clone()

		// Non entry chains lose their IVs for good. The entry chain keeps
		// only its IV: its computed values are discarded so the distributed
		// file gives a solver the starting point and nothing else.
		switch clone.Index() {
		case EntryChain:
			if err := clone.Reseed(); err != nil {
				return err
			}
		default:
			if err := clone.Seal(); err != nil {
				return err
			}
		}

		chains = append(chains, clone)
	}

	doc := s.buildDocument(StatusLocked, chains)
	if err := s.storer.Replace(doc); err != nil {
		return fmt.Errorf("persisting timelock: %w", err)
	}

	s.status = StatusLocked
	s.chains = chains

	s.evHandler("state: lock: id[%s] sealed[%d] entry[%d]", s.id, len(chains)-1, EntryChain)
	return nil
}

// Verify rehashes every recorded checkpoint, terminal, and recovered secret.
// It mutates nothing.
func (s *State) Verify() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.chains {
		if err := c.Verify(); err != nil {
			return fmt.Errorf("chain %d: %w", c.Index(), err)
		}
	}
	return nil
}

// =============================================================================

// chainAt returns the chain for the specified index.
func (s *State) chainAt(index int) (*chain.Chain, error) {
	if index < 0 || index >= len(s.chains) {
		return nil, &chain.MalformedInputError{Field: "index", Reason: fmt.Sprintf("chain %d does not exist, have %d chains", index, len(s.chains))}
	}
	return s.chains[index], nil
}

// commit persists the state with the specified chain replaced by its mutated
// clone and, only on success, makes the clone visible in memory. The caller
// must hold the lock.
func (s *State) commit(index int, clone *chain.Chain) error {
	chains := make([]*chain.Chain, len(s.chains))
	copy(chains, s.chains)
	chains[index] = clone

	status := s.status
	if status != StatusLocked {
		status = deriveStatus(chains)
	}

	doc := s.buildDocument(status, chains)
	if err := s.storer.Replace(doc); err != nil {
		return fmt.Errorf("persisting timelock: %w", err)
	}

	s.status = status
	s.chains = chains
	return nil
}

// persist writes the current state as is. The caller must hold the lock or
// have exclusive access.
func (s *State) persist() error {
	if err := s.storer.Replace(s.document()); err != nil {
		return fmt.Errorf("persisting timelock: %w", err)
	}
	return nil
}

// document builds the persisted form of the current state.
func (s *State) document() storage.Document {
	return s.buildDocument(s.status, s.chains)
}

// buildDocument builds a persisted document for the specified status and
// chain set.
func (s *State) buildDocument(status Status, chains []*chain.Chain) storage.Document {
	docs := make([]storage.ChainDoc, 0, len(chains))
	for _, c := range chains {
		docs = append(docs, storage.NewChainDoc(c))
	}

	return storage.Document{
		ID:          s.id,
		Algorithm:   kernel.AlgorithmSHA256,
		Status:      string(status),
		NChains:     len(chains),
		ChainLength: s.length,
		Chains:      docs,
	}
}

// deriveStatus reports Unlocked once every chain is computed, Draft before.
func deriveStatus(chains []*chain.Chain) Status {
	for _, c := range chains {
		if c.Status() != chain.StatusComputed {
			return StatusDraft
		}
	}
	return StatusUnlocked
}
