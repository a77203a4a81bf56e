package rangeproof

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// Commit returns the MiMC commitment to value with the given blinding factor,
// as the 32-byte big-endian encoding of a BN254 scalar.
func Commit(value uint64, blinding *big.Int) ([]byte, error) {
	var v, b fr.Element
	v.SetUint64(value)
	b.SetBigInt(blinding)
	vBytes, bBytes := v.Bytes(), b.Bytes()

	h := mimc.NewMiMC()
	if _, err := h.Write(vBytes[:]); err != nil {
		return nil, fmt.Errorf("commit value: %w", err)
	}
	if _, err := h.Write(bBytes[:]); err != nil {
		return nil, fmt.Errorf("commit blinding: %w", err)
	}
	return h.Sum(nil), nil
}
