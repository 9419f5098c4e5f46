package kernel_test

import (
	"testing"

	"github.com/ardanlabs/timelock/foundation/timelock/kernel"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

func Test_Advance(t *testing.T) {
	type table struct {
		name  string
		start string
		steps uint64
		want  string
	}

	// Chain values for the all zero IV, independently computed.
	tt := []table{
		{
			name:  "zero",
			start: "0000000000000000000000000000000000000000000000000000000000000000",
			steps: 0,
			want:  "0000000000000000000000000000000000000000000000000000000000000000",
		},
		{
			name:  "one",
			start: "0000000000000000000000000000000000000000000000000000000000000000",
			steps: 1,
			want:  "66687aadf862bd776c8fc18b8e9f8e20089714856ee233b3902a591d0d5f2925",
		},
		{
			name:  "two",
			start: "0000000000000000000000000000000000000000000000000000000000000000",
			steps: 2,
			want:  "2b32db6c2c0a6235fb1397e8225ea85e0f0e6e8c7b126d0016ccbde0e667151e",
		},
		{
			name:  "five",
			start: "0000000000000000000000000000000000000000000000000000000000000000",
			steps: 5,
			want:  "376da11fe3ab3d0eaaddb418ccb49b5426d5c2504f526f7766580f6e45984e3b",
		},
		{
			name:  "resume",
			start: "2b32db6c2c0a6235fb1397e8225ea85e0f0e6e8c7b126d0016ccbde0e667151e",
			steps: 3,
			want:  "376da11fe3ab3d0eaaddb418ccb49b5426d5c2504f526f7766580f6e45984e3b",
		},
	}

	t.Log("Given the need to validate the sequential hash computation.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen advancing %q by %d steps.", testID, tst.name, tst.steps)
			{
				start, err := kernel.DigestFromHex(tst.start)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to decode the start value: %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould be able to decode the start value.", success, testID)

				got := kernel.Advance(start, tst.steps)
				if got.String() != tst.want {
					t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, got)
					t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, tst.want)
					t.Fatalf("\t%s\tTest %d:\tShould compute the expected chain value.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould compute the expected chain value.", success, testID)
			}
		}
	}
}

func Test_Composability(t *testing.T) {
	t.Log("Given the need to validate Advance(Advance(x,a),b) == Advance(x,a+b).")
	{
		start, err := kernel.NewIV()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to draw a random IV: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to draw a random IV.", success)

		const bound = 64
		for a := uint64(0); a <= bound; a += 7 {
			for b := uint64(0); b <= bound; b += 9 {
				split := kernel.Advance(kernel.Advance(start, a), b)
				whole := kernel.Advance(start, a+b)
				if split != whole {
					t.Fatalf("\t%s\tShould compose for a=%d b=%d: got %s, exp %s", failed, a, b, split, whole)
				}
			}
		}
		t.Logf("\t%s\tShould compose for all tested splits.", success)
	}
}

func Test_Verify(t *testing.T) {
	t.Log("Given the need to validate checkpoint verification.")
	{
		start := kernel.Digest{}
		good := kernel.Advance(start, 3)

		if !kernel.Verify(start, 3, good) {
			t.Fatalf("\t%s\tShould affirm a correct checkpoint.", failed)
		}
		t.Logf("\t%s\tShould affirm a correct checkpoint.", success)

		bad := good
		bad[0] ^= 0x01
		if kernel.Verify(start, 3, bad) {
			t.Fatalf("\t%s\tShould reject a corrupted checkpoint.", failed)
		}
		t.Logf("\t%s\tShould reject a corrupted checkpoint.", success)

		if kernel.Verify(start, 2, good) {
			t.Fatalf("\t%s\tShould reject a checkpoint at the wrong step.", failed)
		}
		t.Logf("\t%s\tShould reject a checkpoint at the wrong step.", success)
	}
}

func Test_DigestText(t *testing.T) {
	t.Log("Given the need to round trip digests through their hex form.")
	{
		const hexVal = "12771355e46cd47c71ed1721fd5319b383cca3a1f9fce3aa1c8cd3bd37af20d7"

		d, err := kernel.DigestFromHex(hexVal)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to decode a 32 byte hex value: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to decode a 32 byte hex value.", success)

		if d.String() != hexVal {
			t.Fatalf("\t%s\tShould encode back to the same hex: got %s", failed, d)
		}
		t.Logf("\t%s\tShould encode back to the same hex.", success)

		if _, err := kernel.DigestFromHex("abcd"); err == nil {
			t.Fatalf("\t%s\tShould reject a short value.", failed)
		}
		t.Logf("\t%s\tShould reject a short value.", success)

		if _, err := kernel.DigestFromHex("zz771355e46cd47c71ed1721fd5319b383cca3a1f9fce3aa1c8cd3bd37af20d7"); err == nil {
			t.Fatalf("\t%s\tShould reject a non hex value.", failed)
		}
		t.Logf("\t%s\tShould reject a non hex value.", success)
	}
}
