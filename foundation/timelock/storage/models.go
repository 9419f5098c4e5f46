// Package storage knows how to persist a timelock document to disk and get it
// back. A document is one JSON file, replaced atomically on every commit, so
// an acknowledged checkpoint can never be lost to a crash and a reader can
// never observe a half written state.
package storage

import (
	"fmt"
	"strconv"

	"github.com/ardanlabs/timelock/foundation/timelock/chain"
	"github.com/ardanlabs/timelock/foundation/timelock/kernel"
	"github.com/go-playground/validator/v10"
)

// Aggregate status values as persisted.
const (
	StatusDraft    = "draft"
	StatusUnlocked = "unlocked"
	StatusLocked   = "locked"
)

// validate holds the settings and caches for validating documents.
var validate = validator.New()

// =============================================================================

// Document represents the persisted form of a timelock.
type Document struct {
	ID          string     `json:"id" validate:"required,uuid4"`
	Algorithm   string     `json:"algorithm" validate:"required,oneof=sha256"`
	Status      string     `json:"status" validate:"required,oneof=draft unlocked locked"`
	NChains     int        `json:"n_chains" validate:"required,min=1"`
	ChainLength uint64     `json:"chain_length" validate:"required,min=1"`
	Chains      []ChainDoc `json:"chains" validate:"required,min=1,dive"`
}

// ChainDoc represents the persisted form of a single chain. Optional fields
// are empty strings when absent.
type ChainDoc struct {
	Index           int               `json:"index" validate:"min=0"`
	IV              string            `json:"iv,omitempty" validate:"omitempty,hexadecimal,len=64"`
	Checkpoints     map[string]string `json:"checkpoints,omitempty" validate:"omitempty,dive,keys,number,endkeys,hexadecimal,len=64"`
	Terminal        string            `json:"terminal,omitempty" validate:"omitempty,hexadecimal,len=64"`
	RecoveredSecret string            `json:"recovered_secret,omitempty" validate:"omitempty,hexadecimal,len=64"`
}

// Validate performs the structural checks on a document before any domain
// object is built from it.
func (doc Document) Validate() error {
	if err := validate.Struct(doc); err != nil {
		return fmt.Errorf("invalid document: %w", err)
	}
	if len(doc.Chains) != doc.NChains {
		return fmt.Errorf("invalid document: n_chains is %d but %d chains are present", doc.NChains, len(doc.Chains))
	}
	return nil
}

// =============================================================================

// ToChain converts a persisted chain into its domain form.
func (cd ChainDoc) ToChain(length uint64) (*chain.Chain, error) {
	optional := func(s string) (*kernel.Digest, error) {
		if s == "" {
			return nil, nil
		}
		d, err := kernel.DigestFromHex(s)
		if err != nil {
			return nil, err
		}
		return &d, nil
	}

	iv, err := optional(cd.IV)
	if err != nil {
		return nil, fmt.Errorf("chain %d iv: %w", cd.Index, err)
	}
	terminal, err := optional(cd.Terminal)
	if err != nil {
		return nil, fmt.Errorf("chain %d terminal: %w", cd.Index, err)
	}
	recovered, err := optional(cd.RecoveredSecret)
	if err != nil {
		return nil, fmt.Errorf("chain %d recovered_secret: %w", cd.Index, err)
	}

	checkpoints := make(map[uint64]kernel.Digest, len(cd.Checkpoints))
	for stepStr, valueStr := range cd.Checkpoints {
		step, err := strconv.ParseUint(stepStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("chain %d checkpoint step %q: %w", cd.Index, stepStr, err)
		}
		value, err := kernel.DigestFromHex(valueStr)
		if err != nil {
			return nil, fmt.Errorf("chain %d checkpoint %d: %w", cd.Index, step, err)
		}
		checkpoints[step] = value
	}

	return chain.Load(cd.Index, length, iv, checkpoints, terminal, recovered)
}

// NewChainDoc converts a domain chain into its persisted form.
func NewChainDoc(c *chain.Chain) ChainDoc {
	cd := ChainDoc{
		Index: c.Index(),
	}

	if iv, ok := c.IV(); ok {
		cd.IV = iv.String()
	}
	if terminal, ok := c.Terminal(); ok {
		cd.Terminal = terminal.String()
	}
	if recovered, ok := c.RecoveredSecret(); ok {
		cd.RecoveredSecret = recovered.String()
	}

	if cps := c.Checkpoints(); len(cps) > 0 {
		cd.Checkpoints = make(map[string]string, len(cps))
		for step, value := range cps {
			cd.Checkpoints[strconv.FormatUint(step, 10)] = value.String()
		}
	}

	return cd
}
