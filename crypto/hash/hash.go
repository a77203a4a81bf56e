// Package hash contains the digest functions of the ledger. Every digest is
// a SHA-256 sum, so all of them are 32 bytes long.
package hash

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

const (
	// Size is the length in bytes of every digest.
	Size = sha256.Size
	// truncatedKeySize is the amount of private key material mixed into the
	// nullifier.
	truncatedKeySize = 16
)

var (
	// EmptySentinel is hashed to obtain the Merkle root of an empty set, so
	// empty blocks have a well-known root that differs from an all-zero
	// value.
	EmptySentinel = []byte("empty")
	nullifierTag  = []byte("nullifier")

	encMode cbor.EncMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
}

// Sum returns the SHA-256 digest of the concatenation of the inputs.
func Sum(data ...[]byte) []byte {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Empty returns the digest of the empty-set sentinel.
func Empty() []byte {
	return Sum(EmptySentinel)
}

// Nullifier derives the one-way double vote marker of a voter. It is
// deterministic for a (voter, key) pair, so a second vote of the same voter
// always collides with the first one.
func Nullifier(voterID string, privateKey []byte) []byte {
	material := privateKey
	if len(material) > truncatedKeySize {
		material = material[:truncatedKeySize]
	}
	return Sum([]byte(voterID), material, nullifierTag)
}

// Object returns the digest of the deterministic CBOR encoding of v. It is
// used for structures such as block headers whose hash must be stable.
func Object(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode object: %w", err)
	}
	return Sum(data), nil
}
