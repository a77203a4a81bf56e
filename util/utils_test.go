package util

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestTrimHex(t *testing.T) {
	c := qt.New(t)
	c.Assert(TrimHex("0xabcd"), qt.Equals, "abcd")
	c.Assert(TrimHex("0Xabcd"), qt.Equals, "abcd")
	c.Assert(TrimHex("abcd"), qt.Equals, "abcd")
	c.Assert(TrimHex("0"), qt.Equals, "0")
}

func TestRandom(t *testing.T) {
	c := qt.New(t)
	c.Assert(RandomBytes(16), qt.HasLen, 16)
	c.Assert(RandomHex(16), qt.HasLen, 32)
	for i := 0; i < 100; i++ {
		n := RandomInt(5, 10)
		c.Assert(n >= 5 && n < 10, qt.IsTrue)
	}
	c.Assert(RandomFieldElement().Cmp(bn254ScalarField) < 0, qt.IsTrue)
}

func TestBigToFF(t *testing.T) {
	c := qt.New(t)
	c.Assert(BigToFF(big.NewInt(7)).Int64(), qt.Equals, int64(7))
	c.Assert(BigToFF(new(big.Int).Set(bn254ScalarField)).Sign(), qt.Equals, 0)
	over := new(big.Int).Add(bn254ScalarField, big.NewInt(3))
	c.Assert(BigToFF(over).Int64(), qt.Equals, int64(3))
	neg := BigToFF(big.NewInt(-1))
	c.Assert(neg.Cmp(new(big.Int).Sub(bn254ScalarField, big.NewInt(1))), qt.Equals, 0)
}
