// Package rangeproof implements the zero-knowledge range proof attached to
// every vote: the voter proves that the committed candidate index lies in
// [Min, Max] without revealing it.
package rangeproof

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// RangeBits is the bit length of the range checks, so Max-Min must fit in 32
// bits.
const RangeBits = 32

// Circuit proves knowledge of Value and Blinding such that
// Commitment = MiMC(Value, Blinding) and Min <= Value <= Max.
type Circuit struct {
	Value    frontend.Variable `gnark:",secret"`
	Blinding frontend.Variable `gnark:",secret"`

	Commitment frontend.Variable `gnark:",public"`
	Min        frontend.Variable `gnark:",public"`
	Max        frontend.Variable `gnark:",public"`
}

func (c *Circuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.Value, c.Blinding)
	api.AssertIsEqual(h.Sum(), c.Commitment)
	// a negative difference wraps around the field and does not fit
	api.ToBinary(api.Sub(c.Value, c.Min), RangeBits)
	api.ToBinary(api.Sub(c.Max, c.Value), RangeBits)
	return nil
}
