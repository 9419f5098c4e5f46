package storage_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ardanlabs/timelock/foundation/timelock/chain"
	"github.com/ardanlabs/timelock/foundation/timelock/kernel"
	"github.com/ardanlabs/timelock/foundation/timelock/storage"
	"github.com/google/uuid"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func testDoc() storage.Document {
	iv := kernel.Digest{}
	terminal := kernel.Advance(iv, 5)

	return storage.Document{
		ID:          uuid.NewString(),
		Algorithm:   kernel.AlgorithmSHA256,
		Status:      storage.StatusDraft,
		NChains:     1,
		ChainLength: 5,
		Chains: []storage.ChainDoc{
			{
				Index: 0,
				IV:    iv.String(),
				Checkpoints: map[string]string{
					"2": kernel.Advance(iv, 2).String(),
				},
				Terminal: terminal.String(),
			},
		},
	}
}

// =============================================================================

func Test_DiskRoundTrip(t *testing.T) {
	t.Log("Given the need to persist and reload a timelock document.")
	{
		path := filepath.Join(t.TempDir(), "timelock.json")
		disk := storage.NewDisk(path)

		if disk.Exists() {
			t.Fatalf("\t%s\tShould report no document before the first write.", failed)
		}
		t.Logf("\t%s\tShould report no document before the first write.", success)

		doc := testDoc()
		if err := disk.Replace(doc); err != nil {
			t.Fatalf("\t%s\tShould be able to write the document: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to write the document.", success)

		got, err := disk.Load()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to load the document: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to load the document.", success)

		if got.ID != doc.ID || got.ChainLength != doc.ChainLength || len(got.Chains) != 1 {
			t.Fatalf("\t%s\tShould get back the same document.", failed)
		}
		if got.Chains[0].Checkpoints["2"] != doc.Chains[0].Checkpoints["2"] {
			t.Fatalf("\t%s\tShould get back the same checkpoints.", failed)
		}
		t.Logf("\t%s\tShould get back the same document.", success)

		// No temp files should remain after a commit.
		entries, err := os.ReadDir(filepath.Dir(path))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to read the directory: %v", failed, err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".timelock-") {
				t.Fatalf("\t%s\tShould leave no temp files behind: %s", failed, e.Name())
			}
		}
		t.Logf("\t%s\tShould leave no temp files behind.", success)
	}
}

func Test_DocumentValidation(t *testing.T) {
	type table struct {
		name   string
		mutate func(doc *storage.Document)
	}

	tt := []table{
		{
			name:   "bad status",
			mutate: func(doc *storage.Document) { doc.Status = "open" },
		},
		{
			name:   "bad iv hex",
			mutate: func(doc *storage.Document) { doc.Chains[0].IV = "zz" },
		},
		{
			name:   "short terminal",
			mutate: func(doc *storage.Document) { doc.Chains[0].Terminal = "abcd" },
		},
		{
			name:   "chain count mismatch",
			mutate: func(doc *storage.Document) { doc.NChains = 3 },
		},
		{
			name:   "missing id",
			mutate: func(doc *storage.Document) { doc.ID = "" },
		},
	}

	t.Log("Given the need to reject malformed documents.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen validating %q.", testID, tst.name)
			{
				doc := testDoc()
				tst.mutate(&doc)

				if err := doc.Validate(); err == nil {
					t.Fatalf("\t%s\tTest %d:\tShould reject the document.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould reject the document.", success, testID)
			}
		}
	}
}

func Test_ChainDocConversion(t *testing.T) {
	t.Log("Given the need to convert between persisted and domain chains.")
	{
		doc := testDoc()

		c, err := doc.Chains[0].ToChain(doc.ChainLength)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build the domain chain: %v", failed, err)
		}
		if c.Status() != chain.StatusComputed {
			t.Fatalf("\t%s\tShould derive the computed status: got %s", failed, c.Status())
		}
		t.Logf("\t%s\tShould be able to build the domain chain.", success)

		back := storage.NewChainDoc(c)
		if back.IV != doc.Chains[0].IV || back.Terminal != doc.Chains[0].Terminal {
			t.Fatalf("\t%s\tShould round trip the chain fields.", failed)
		}
		if back.Checkpoints["2"] != doc.Chains[0].Checkpoints["2"] {
			t.Fatalf("\t%s\tShould round trip the checkpoints.", failed)
		}
		t.Logf("\t%s\tShould round trip the chain fields.", success)
	}
}
