// Package ecies seals vote payloads to an election tally key. Key agreement is
// done on BabyJubJub, the shared point is expanded with HKDF-SHA256 and the
// payload is encrypted with XChaCha20-Poly1305.
//
// A sealed payload is laid out as ephemeral public key (32 bytes, compressed
// point) || nonce (24 bytes) || ciphertext.
package ecies

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/iden3/go-iden3-crypto/babyjub"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the size of both the private key and the compressed
	// public key.
	KeySize   = 32
	nonceSize = chacha20poly1305.NonceSizeX
	// Overhead is the number of bytes a sealed payload adds to the plaintext.
	Overhead = KeySize + nonceSize + chacha20poly1305.Overhead
)

var hkdfInfo = []byte("election-ledger/payload/v1")

var (
	ErrInvalidKey = errors.New("invalid tally key")
	ErrOpen       = errors.New("cannot open sealed payload")
)

// GenerateKeyPair returns a new random private key and its compressed public
// key.
func GenerateKeyPair() ([]byte, []byte) {
	privkey := babyjub.NewRandPrivKey()
	pub := privkey.Public().Compress()
	return privkey[:], pub[:]
}

// PublicKey derives the compressed public key of a private key.
func PublicKey(priv []byte) ([]byte, error) {
	if len(priv) != KeySize {
		return nil, ErrInvalidKey
	}
	var k babyjub.PrivateKey
	copy(k[:], priv)
	pub := k.Public().Compress()
	return pub[:], nil
}

// Seal encrypts plaintext to the compressed public key pub.
func Seal(pub, plaintext []byte) ([]byte, error) {
	recipient, err := decompress(pub)
	if err != nil {
		return nil, err
	}
	// random ephemeral scalar k, E = [k]G, S = [k]P
	kBytes := make([]byte, 32)
	if _, err := rand.Read(kBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random k: %w", err)
	}
	k := new(big.Int).SetBytes(kBytes)
	k.Mod(k, babyjub.SubOrder)
	if k.Sign() == 0 {
		k.SetInt64(1)
	}
	ephemeral := babyjub.NewPoint().Mul(k, babyjub.B8).Compress()
	shared := babyjub.NewPoint().Mul(k, recipient)

	aead, err := newAEAD(shared, ephemeral[:])
	if err != nil {
		return nil, err
	}
	out := make([]byte, KeySize+nonceSize, Overhead+len(plaintext))
	copy(out, ephemeral[:])
	if _, err := rand.Read(out[KeySize:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return aead.Seal(out, out[KeySize:], plaintext, ephemeral[:]), nil
}

// Open decrypts a payload produced by Seal with the private key priv.
func Open(priv, sealed []byte) ([]byte, error) {
	if len(priv) != KeySize {
		return nil, ErrInvalidKey
	}
	if len(sealed) < Overhead {
		return nil, fmt.Errorf("%w: too short", ErrOpen)
	}
	ephemeral, err := decompress(sealed[:KeySize])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	var k babyjub.PrivateKey
	copy(k[:], priv)
	shared := babyjub.NewPoint().Mul(k.Scalar().BigInt(), ephemeral)

	aead, err := newAEAD(shared, sealed[:KeySize])
	if err != nil {
		return nil, err
	}
	nonce := sealed[KeySize : KeySize+nonceSize]
	plaintext, err := aead.Open(nil, nonce, sealed[KeySize+nonceSize:], sealed[:KeySize])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	return plaintext, nil
}

func decompress(b []byte) (*babyjub.Point, error) {
	if len(b) != KeySize {
		return nil, ErrInvalidKey
	}
	var comp [32]byte
	copy(comp[:], b)
	p, err := babyjub.NewPoint().Decompress(comp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return p, nil
}

// newAEAD derives the symmetric key from the shared point, salted with the
// ephemeral public key.
func newAEAD(shared *babyjub.Point, salt []byte) (cipher.AEAD, error) {
	secret := shared.Compress()
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret[:], salt, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return chacha20poly1305.NewX(key)
}
