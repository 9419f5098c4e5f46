// Package keys turns a chain's terminal value into the key material for its
// bounty address. The pipeline is fixed: terminal bytes become a secp256k1
// private key, the compressed public key is hashed into the secret, and the
// RIPEMD160 of the secret becomes a version 0 Base58Check address. Funding
// that address makes revealing the private key worth the solver's while.
package keys

import (
	"crypto/sha256"
	"errors"

	"github.com/ardanlabs/timelock/foundation/timelock/kernel"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/ripemd160"
)

// Version bytes for the Base58Check encodings produced by this package.
const (
	AddressVersion = 0x00 // Pay-to-pubkey-hash mainnet address.
	wifVersion     = 0x80
)

// ErrZeroScalar is returned when a terminal value reduces to the zero scalar
// modulo the secp256k1 group order. Zero is not a usable private key. No
// SHA256 output is known to hit this case.
var ErrZeroScalar = errors.New("terminal reduces to the zero scalar")

// =============================================================================

// Key represents the full set of material derived from a terminal value.
type Key struct {
	PrivateKey   *btcec.PrivateKey
	PublicKey    []byte // Compressed point encoding.
	Secret       kernel.Digest
	HashedSecret []byte
	Address      string
	WIF          string
}

// Derive maps a terminal value to its bounty key material. The terminal is
// interpreted as a big endian scalar and reduced modulo the secp256k1 group
// order, so the derivation is total and deterministic for every 32 byte input
// except the zero scalar. No I/O is performed.
func Derive(terminal kernel.Digest) (Key, error) {
	privKey, _ := btcec.PrivKeyFromBytes(terminal[:])
	if privKey.Key.IsZero() {
		return Key{}, ErrZeroScalar
	}

	pubKey := privKey.PubKey().SerializeCompressed()

	secret := kernel.Digest(sha256.Sum256(pubKey))

	h := ripemd160.New()
	h.Write(secret[:])
	hashedSecret := h.Sum(nil)

	key := Key{
		PrivateKey:   privKey,
		PublicKey:    pubKey,
		Secret:       secret,
		HashedSecret: hashedSecret,
		Address:      base58.CheckEncode(hashedSecret, AddressVersion),
		WIF:          encodeWIF(privKey),
	}

	return key, nil
}

// encodeWIF serializes the private key in the compressed wallet import format
// so the key can be swept directly into a wallet once revealed.
func encodeWIF(privKey *btcec.PrivateKey) string {
	b := make([]byte, 0, btcec.PrivKeyBytesLen+1)
	b = append(b, privKey.Serialize()...)
	b = append(b, 0x01)
	return base58.CheckEncode(b, wifVersion)
}
