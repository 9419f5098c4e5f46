package state_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ardanlabs/timelock/foundation/timelock/chain"
	"github.com/ardanlabs/timelock/foundation/timelock/kernel"
	"github.com/ardanlabs/timelock/foundation/timelock/keys"
	"github.com/ardanlabs/timelock/foundation/timelock/state"
	"github.com/ardanlabs/timelock/foundation/timelock/storage"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func newConfig(t *testing.T) state.Config {
	t.Helper()

	return state.Config{
		Storer: storage.NewDisk(filepath.Join(t.TempDir(), "timelock.json")),
	}
}

// =============================================================================

func Test_Create(t *testing.T) {
	t.Log("Given the need to create a timelock with independent chains.")
	{
		cfg := newConfig(t)

		// 30 evaluations of total work spread across 3 chains.
		s, err := state.Create(cfg, 3, 30*time.Second, 1.0)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to create the timelock: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to create the timelock.", success)

		if s.ChainLength() != 10 {
			t.Fatalf("\t%s\tShould spread the work across the chains: got length %d, exp 10", failed, s.ChainLength())
		}
		t.Logf("\t%s\tShould spread the work across the chains.", success)

		if s.Status() != state.StatusDraft {
			t.Fatalf("\t%s\tShould start in draft: got %s", failed, s.Status())
		}
		t.Logf("\t%s\tShould start in draft.", success)

		ivs := make(map[kernel.Digest]bool)
		for _, c := range s.Chains() {
			if c.Status() != chain.StatusSeeded {
				t.Fatalf("\t%s\tShould seed every chain: chain %d is %s", failed, c.Index(), c.Status())
			}
			iv, ok := c.IV()
			if !ok {
				t.Fatalf("\t%s\tShould give every chain an iv.", failed)
			}
			ivs[iv] = true
		}
		if len(ivs) != 3 {
			t.Fatalf("\t%s\tShould draw independent ivs: got %d distinct", failed, len(ivs))
		}
		t.Logf("\t%s\tShould seed every chain with an independent iv.", success)

		// A second create against the same file must refuse.
		if _, err := state.Create(cfg, 1, time.Second, 1.0); !errors.Is(err, state.ErrExists) {
			t.Fatalf("\t%s\tShould refuse to overwrite an existing timelock: %v", failed, err)
		}
		t.Logf("\t%s\tShould refuse to overwrite an existing timelock.", success)
	}
}

func Test_EndToEnd(t *testing.T) {
	t.Log("Given the need to walk a single chain timelock from create to unlock.")
	{
		cfg := newConfig(t)

		s, err := state.Create(cfg, 1, 5*time.Second, 1.0)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to create the timelock: %v", failed, err)
		}
		if s.ChainLength() != 5 {
			t.Fatalf("\t%s\tShould pick a length of 5: got %d", failed, s.ChainLength())
		}
		t.Logf("\t%s\tShould be able to create a length 5 timelock.", success)

		// Compute the terminal externally and submit it.
		iv, _ := s.Chains()[0].IV()
		terminal := kernel.Advance(iv, 5)
		if err := s.AddTerminal(0, terminal); err != nil {
			t.Fatalf("\t%s\tShould accept the externally computed terminal: %v", failed, err)
		}
		if s.Chains()[0].Status() != chain.StatusComputed {
			t.Fatalf("\t%s\tShould move the chain to computed.", failed)
		}
		if s.Status() != state.StatusUnlocked {
			t.Fatalf("\t%s\tShould report the timelock unlocked: got %s", failed, s.Status())
		}
		t.Logf("\t%s\tShould accept the terminal and report the timelock unlocked.", success)

		if err := s.Lock(); err != nil {
			t.Fatalf("\t%s\tShould be able to lock: %v", failed, err)
		}
		if s.Status() != state.StatusLocked {
			t.Fatalf("\t%s\tShould report the timelock locked.", failed)
		}
		if _, ok := s.Chains()[0].IV(); !ok {
			t.Fatalf("\t%s\tShould keep the entry chain's iv through locking.", failed)
		}
		if _, ok := s.Chains()[0].Terminal(); ok {
			t.Fatalf("\t%s\tShould discard the entry chain's terminal on locking.", failed)
		}
		t.Logf("\t%s\tShould lock and keep only the entry chain's iv.", success)

		// Reload from disk and solve step by step.
		loaded, err := state.New(cfg)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to reload the locked timelock: %v", failed, err)
		}
		key, err := loaded.Unlock(context.Background(), 1)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to unlock: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to unlock step by step.", success)

		gotTerminal, ok := loaded.Chains()[0].Terminal()
		if !ok || gotTerminal != terminal {
			t.Fatalf("\t%s\tShould reproduce the same terminal.", failed)
		}
		t.Logf("\t%s\tShould reproduce the same terminal.", success)

		wantKey, err := keys.Derive(terminal)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to derive from the terminal: %v", failed, err)
		}
		if key.Address != wantKey.Address {
			t.Fatalf("\t%s\tShould derive the same address: got %s, exp %s", failed, key.Address, wantKey.Address)
		}
		t.Logf("\t%s\tShould derive the bounty address from the terminal.", success)
	}
}

func Test_LockPolicy(t *testing.T) {
	t.Log("Given the need to enforce the aggregate locking policy.")
	{
		cfg := newConfig(t)

		s, err := state.Create(cfg, 3, 30*time.Second, 1.0)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to create the timelock: %v", failed, err)
		}

		// Locking before every chain is computed is illegal.
		if err := s.Lock(); err == nil {
			t.Fatalf("\t%s\tShould refuse to lock a draft timelock.", failed)
		}
		t.Logf("\t%s\tShould refuse to lock a draft timelock.", success)

		if err := s.ComputeAll(context.Background(), 4); err != nil {
			t.Fatalf("\t%s\tShould be able to compute all chains: %v", failed, err)
		}
		if s.Status() != state.StatusUnlocked {
			t.Fatalf("\t%s\tShould be unlocked after computing: got %s", failed, s.Status())
		}
		t.Logf("\t%s\tShould be able to compute all chains in parallel.", success)

		// Remember the ivs so recovery can be tested after sealing.
		origIVs := make(map[int]kernel.Digest)
		for _, c := range s.Chains() {
			iv, _ := c.IV()
			origIVs[c.Index()] = iv
		}

		if err := s.Lock(); err != nil {
			t.Fatalf("\t%s\tShould be able to lock: %v", failed, err)
		}
		if err := s.Lock(); !errors.Is(err, state.ErrLocked) {
			t.Fatalf("\t%s\tShould refuse to lock twice: %v", failed, err)
		}
		t.Logf("\t%s\tShould lock exactly once.", success)

		// The persisted document must not retain the stripped ivs anywhere.
		doc := s.Document()
		for _, cd := range doc.Chains {
			if cd.Index == state.EntryChain {
				if cd.IV == "" {
					t.Fatalf("\t%s\tShould keep the entry chain's iv.", failed)
				}
				if cd.Terminal != "" || len(cd.Checkpoints) != 0 {
					t.Fatalf("\t%s\tShould discard the entry chain's computed values.", failed)
				}
				continue
			}
			if cd.IV != "" || len(cd.Checkpoints) != 0 {
				t.Fatalf("\t%s\tShould strip iv and checkpoints from chain %d.", failed, cd.Index)
			}
			if cd.Terminal == "" {
				t.Fatalf("\t%s\tShould retain the terminal of chain %d.", failed, cd.Index)
			}
		}
		t.Logf("\t%s\tShould strip everything but the terminal from non entry chains.", success)

		// A rediscovered iv is accepted against its sealed chain.
		index, err := s.AddSecretAny(origIVs[2])
		if err != nil {
			t.Fatalf("\t%s\tShould accept the original iv of a sealed chain: %v", failed, err)
		}
		if index != 2 {
			t.Fatalf("\t%s\tShould match the secret to chain 2: got %d", failed, index)
		}
		if s.Chains()[2].Status() != chain.StatusRecovered {
			t.Fatalf("\t%s\tShould move chain 2 to recovered.", failed)
		}
		t.Logf("\t%s\tShould accept a rediscovered iv and record the recovery.", success)

		// Submitting it again leaves the state identical.
		before := s.Document()
		if _, err := s.AddSecretAny(origIVs[2]); err != nil {
			t.Fatalf("\t%s\tShould accept a resubmission: %v", failed, err)
		}
		after := s.Document()
		if before.Chains[2].RecoveredSecret != after.Chains[2].RecoveredSecret {
			t.Fatalf("\t%s\tShould leave the recovered secret unchanged.", failed)
		}
		t.Logf("\t%s\tShould treat resubmission as a no-op.", success)
	}
}

func Test_RejectionLeavesDiskUnchanged(t *testing.T) {
	t.Log("Given the need to keep rejected submissions off the disk.")
	{
		dir := t.TempDir()
		disk := storage.NewDisk(filepath.Join(dir, "timelock.json"))
		cfg := state.Config{Storer: disk}

		s, err := state.Create(cfg, 1, 10*time.Second, 1.0)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to create the timelock: %v", failed, err)
		}

		before, err := disk.Load()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to load the document: %v", failed, err)
		}

		iv, _ := s.Chains()[0].IV()
		wrong := kernel.Advance(iv, 3)

		err = s.AddMidstate(0, 2, wrong)
		var verr *chain.VerificationError
		if !errors.As(err, &verr) {
			t.Fatalf("\t%s\tShould reject the wrong midstate: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject the wrong midstate.", success)

		after, err := disk.Load()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to reload the document: %v", failed, err)
		}
		if len(after.Chains[0].Checkpoints) != len(before.Chains[0].Checkpoints) {
			t.Fatalf("\t%s\tShould leave the persisted document unchanged.", failed)
		}
		t.Logf("\t%s\tShould leave the persisted document unchanged.", success)

		if s.Chains()[0].Status() != chain.StatusSeeded {
			t.Fatalf("\t%s\tShould leave the in memory chain unchanged.", failed)
		}
		t.Logf("\t%s\tShould leave the in memory chain unchanged.", success)
	}
}

func Test_ComputeResume(t *testing.T) {
	t.Log("Given the need to resume an interrupted computation from disk.")
	{
		cfg := newConfig(t)

		s, err := state.Create(cfg, 1, 20*time.Second, 1.0)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to create the timelock: %v", failed, err)
		}
		iv, _ := s.Chains()[0].IV()

		// Cancel after the context is already done: nothing should advance.
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := s.Compute(ctx, 0, 5); !errors.Is(err, context.Canceled) {
			t.Fatalf("\t%s\tShould honor a cancelled context: %v", failed, err)
		}
		t.Logf("\t%s\tShould honor a cancelled context.", success)

		// Record progress part way, then reload as if the process had died.
		if err := s.AddMidstate(0, 7, kernel.Advance(iv, 7)); err != nil {
			t.Fatalf("\t%s\tShould accept the progress checkpoint: %v", failed, err)
		}

		loaded, err := state.New(cfg)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to reload mid computation: %v", failed, err)
		}

		step, _, ok := loaded.Chains()[0].Progress()
		if !ok || step != 7 {
			t.Fatalf("\t%s\tShould resume from step 7: got %d", failed, step)
		}
		t.Logf("\t%s\tShould resume from the persisted checkpoint.", success)

		if err := loaded.Compute(context.Background(), 0, 5); err != nil {
			t.Fatalf("\t%s\tShould be able to finish the computation: %v", failed, err)
		}
		terminal, ok := loaded.Chains()[0].Terminal()
		if !ok || terminal != kernel.Advance(iv, 20) {
			t.Fatalf("\t%s\tShould reach the correct terminal after resuming.", failed)
		}
		t.Logf("\t%s\tShould reach the correct terminal after resuming.", success)
	}
}
