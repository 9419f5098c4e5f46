// Package kernel implements the sequential hash computation at the heart of a
// timelock chain. Each step replaces a 32 byte state with the SHA256 digest of
// itself, so the only way to reach step n is to perform n evaluations in order.
// That strict data dependency is the product: creation can run chains in
// parallel, but any single chain can only ever be advanced one step at a time.
package kernel

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// AlgorithmSHA256 is the name recorded in persisted documents for the chain
// algorithm implemented by this package.
const AlgorithmSHA256 = "sha256"

// DigestSize is the size of a chain state in bytes.
const DigestSize = sha256.Size

// =============================================================================

// Digest represents a 32 byte chain state: an IV, a midstate checkpoint, or a
// terminal value.
type Digest [DigestSize]byte

// DigestFromHex converts a hex string into a Digest.
func DigestFromHex(s string) (Digest, error) {
	var d Digest

	b, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("decoding digest: %w", err)
	}
	if len(b) != DigestSize {
		return Digest{}, fmt.Errorf("digest must be %d bytes, got %d", DigestSize, len(b))
	}

	copy(d[:], b)
	return d, nil
}

// NewIV draws a fresh random initialization vector for a new chain.
func NewIV() (Digest, error) {
	var d Digest
	if _, err := rand.Read(d[:]); err != nil {
		return Digest{}, fmt.Errorf("drawing iv: %w", err)
	}
	return d, nil
}

// String returns the hex encoding of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// MarshalText implements encoding.TextMarshaler using the hex encoding.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler using the hex encoding.
func (d *Digest) UnmarshalText(data []byte) error {
	v, err := DigestFromHex(string(data))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// =============================================================================

// Advance performs the specified number of sequential hash evaluations from
// the starting state. Advance(x, 0) returns x unchanged. The function is pure
// and composable: Advance(Advance(x, a), b) equals Advance(x, a+b), which is
// what makes independently submitted checkpoints verifiable.
func Advance(start Digest, steps uint64) Digest {
	d := start
	for i := uint64(0); i < steps; i++ {
		d = sha256.Sum256(d[:])
	}
	return d
}

// Verify reports whether advancing the starting state by the specified number
// of steps reproduces the claimed value.
func Verify(start Digest, steps uint64, claimed Digest) bool {
	return Advance(start, steps) == claimed
}

// =============================================================================

// Benchmark measures the sequential hash rate of this machine in hashes per
// second, returning one measurement per run. Run sizing self calibrates by
// doubling the step count until a single run takes long enough to time
// reliably. The result feeds chain length selection at create time and
// nothing else.
func Benchmark(ctx context.Context, runtime time.Duration, runs int) ([]float64, error) {
	timeRun := func(steps uint64) time.Duration {
		start := time.Now()
		Advance(Digest{}, steps)
		return time.Since(start)
	}

	// Find a step count large enough that a run takes at least 100ms.
	const minRun = 100 * time.Millisecond
	steps := uint64(1)
	dt := time.Duration(0)
	for dt < minRun {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		steps *= 2
		dt = timeRun(steps)
	}

	approxRate := float64(steps) / dt.Seconds()
	steps = uint64(runtime.Seconds() * approxRate)

	results := make([]float64, 0, runs)
	for i := 0; i < runs; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		dt := timeRun(steps)
		results = append(results, float64(steps)/dt.Seconds())
	}

	return results, nil
}
