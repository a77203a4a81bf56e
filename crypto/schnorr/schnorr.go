// Package schnorr implements the voter and authority signature engine:
// BIP-340 Schnorr signatures over secp256k1. Private keys are 32-byte scalars
// and public keys are the 32-byte x-only encoding.
package schnorr

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	bip340 "github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/election-ledger/util"
)

const (
	// PrivateKeySize is the length in bytes of a private key.
	PrivateKeySize = 32
	// PublicKeySize is the length in bytes of an x-only public key.
	PublicKeySize = bip340.PubKeyBytesLen
	// SignatureSize is the length in bytes of a signature.
	SignatureSize = bip340.SignatureSize
	// DigestSize is the length in bytes of the digests that can be signed.
	DigestSize = 32
)

// ErrInvalidKeyFormat is returned when a key is not exactly 32 bytes of hex
// encoding of a valid scalar, or a public key is not a valid x-only point.
var ErrInvalidKeyFormat = errors.New("invalid key format")

// SignKeys holds a private key and its public key.
type SignKeys struct {
	private *btcec.PrivateKey
	public  *btcec.PublicKey
}

// NewSignKeys returns an empty SignKeys, to be filled with Generate or
// AddHexKey.
func NewSignKeys() *SignKeys {
	return &SignKeys{}
}

// Generate creates a new random key pair.
func (k *SignKeys) Generate() error {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	k.private = priv
	k.public = priv.PubKey()
	return nil
}

// AddHexKey imports a hex encoded private key. An optional 0x prefix is
// accepted, anything else than 64 hex characters encoding a scalar in [1, n-1]
// fails with ErrInvalidKeyFormat. The key is never truncated nor padded.
func (k *SignKeys) AddHexKey(privHex string) error {
	privHex = util.TrimHex(privHex)
	if len(privHex) != 2*PrivateKeySize {
		return fmt.Errorf("%w: expected %d hex chars, got %d", ErrInvalidKeyFormat, 2*PrivateKeySize, len(privHex))
	}
	raw, err := hex.DecodeString(privHex)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	return k.AddKey(raw)
}

// AddKey imports a raw 32-byte private key.
func (k *SignKeys) AddKey(raw []byte) error {
	if len(raw) != PrivateKeySize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeyFormat, PrivateKeySize, len(raw))
	}
	var scalar btcec.ModNScalar
	if overflow := scalar.SetByteSlice(raw); overflow {
		return fmt.Errorf("%w: scalar out of range", ErrInvalidKeyFormat)
	}
	if scalar.IsZero() {
		return fmt.Errorf("%w: zero scalar", ErrInvalidKeyFormat)
	}
	priv, pub := btcec.PrivKeyFromBytes(raw)
	k.private = priv
	k.public = pub
	return nil
}

// HexString returns the x-only public key and the private key as hex strings.
func (k *SignKeys) HexString() (string, string) {
	if k.private == nil {
		return "", ""
	}
	return hex.EncodeToString(k.PublicKey()), hex.EncodeToString(k.PrivateKey())
}

// PublicKey returns the 32-byte x-only public key.
func (k *SignKeys) PublicKey() []byte {
	if k.public == nil {
		return nil
	}
	return bip340.SerializePubKey(k.public)
}

// PrivateKey returns the 32-byte private key.
func (k *SignKeys) PrivateKey() []byte {
	if k.private == nil {
		return nil
	}
	return k.private.Serialize()
}

// Address returns the Ethereum style address of the key, used as the voter
// wallet address.
func (k *SignKeys) Address() common.Address {
	if k.public == nil {
		return common.Address{}
	}
	return ethcrypto.PubkeyToAddress(*k.public.ToECDSA())
}

// Sign signs a 32-byte digest. The nonce is derived from the key and the
// digest, so the signature is a pure function of both.
func (k *SignKeys) Sign(digest []byte) ([]byte, error) {
	if k.private == nil {
		return nil, fmt.Errorf("no private key loaded")
	}
	if len(digest) != DigestSize {
		return nil, fmt.Errorf("digest must be %d bytes, got %d", DigestSize, len(digest))
	}
	sig, err := bip340.Sign(k.private, digest)
	if err != nil {
		return nil, fmt.Errorf("sign digest: %w", err)
	}
	return sig.Serialize(), nil
}

// ParsePublicKey validates an x-only public key.
func ParsePublicKey(pubKey []byte) error {
	if _, err := bip340.ParsePubKey(pubKey); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	return nil
}

// Verify checks a signature of a 32-byte digest against an x-only public key.
// Malformed inputs verify as false.
func Verify(digest, signature, pubKey []byte) bool {
	if len(digest) != DigestSize {
		return false
	}
	pub, err := bip340.ParsePubKey(pubKey)
	if err != nil {
		return false
	}
	sig, err := bip340.ParseSignature(signature)
	if err != nil {
		return false
	}
	return sig.Verify(digest, pub)
}
