package rangeproof

import (
	"context"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/test"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/election-ledger/circuits"
	"github.com/vocdoni/election-ledger/util"
)

func assignment(c *qt.C, value, min, max uint64) *Circuit {
	blinding := util.RandomFieldElement()
	commitment, err := Commit(value, blinding)
	c.Assert(err, qt.IsNil)
	return &Circuit{
		Value:      value,
		Blinding:   blinding,
		Commitment: new(big.Int).SetBytes(commitment),
		Min:        min,
		Max:        max,
	}
}

func TestCircuit(t *testing.T) {
	c := qt.New(t)
	field := ecc.BN254.ScalarField()

	for _, tc := range []struct {
		value, min, max uint64
		solved          bool
	}{
		{1, 1, 3, true},
		{3, 1, 3, true},
		{2, 1, 3, true},
		{0, 1, 3, false},
		{4, 1, 3, false},
	} {
		err := test.IsSolved(&Circuit{}, assignment(c, tc.value, tc.min, tc.max), field)
		if tc.solved {
			c.Assert(err, qt.IsNil, qt.Commentf("value %d", tc.value))
		} else {
			c.Assert(err, qt.IsNotNil, qt.Commentf("value %d", tc.value))
		}
	}

	// wrong commitment
	bad := assignment(c, 2, 1, 3)
	bad.Commitment = 12345
	c.Assert(test.IsSolved(&Circuit{}, bad, field), qt.IsNotNil)
}

func TestProveVerify(t *testing.T) {
	c := qt.New(t)
	if testing.Short() {
		c.Skip("skipping groth16 proving in short mode")
	}
	params, err := DevParameters()
	c.Assert(err, qt.IsNil)
	prover := NewProver(params, 2)

	proof, err := prover.Prove(context.Background(), 2, 1, 3)
	c.Assert(err, qt.IsNil)
	c.Assert(proof.Commitment, qt.HasLen, 32)
	c.Assert(prover.Verify(proof.Data, proof.Commitment, proof.Min, proof.Max), qt.IsTrue)

	// public inputs must match
	c.Assert(prover.Verify(proof.Data, proof.Commitment, 1, 2), qt.IsFalse)
	other := append([]byte{}, proof.Commitment...)
	other[31] ^= 0x01
	c.Assert(prover.Verify(proof.Data, other, 1, 3), qt.IsFalse)
	c.Assert(prover.Verify([]byte("garbage"), proof.Commitment, 1, 3), qt.IsFalse)

	// out of range values never produce a proof
	_, err = prover.Prove(context.Background(), 4, 1, 3)
	c.Assert(err, qt.ErrorIs, ErrProofGenerationFailed)
	_, err = prover.Prove(context.Background(), 0, 1, 3)
	c.Assert(err, qt.ErrorIs, ErrProofGenerationFailed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = prover.Prove(ctx, 2, 1, 3)
	c.Assert(err, qt.ErrorIs, ErrProofGenerationFailed)
}

func TestLoadParameters(t *testing.T) {
	c := qt.New(t)
	if testing.Short() {
		c.Skip("skipping groth16 proving in short mode")
	}
	baseDir := circuits.BaseDir
	circuits.BaseDir = c.TempDir()
	defer func() { circuits.BaseDir = baseDir }()

	params, err := DevParameters()
	c.Assert(err, qt.IsNil)
	ccs, pk, vk, err := params.Encode()
	c.Assert(err, qt.IsNil)

	ccsHash, err := circuits.StoreArtifact(ccs)
	c.Assert(err, qt.IsNil)
	pkHash, err := circuits.StoreArtifact(pk)
	c.Assert(err, qt.IsNil)
	vkHash, err := circuits.StoreArtifact(vk)
	c.Assert(err, qt.IsNil)

	loaded, err := LoadParameters(context.Background(), circuits.NewCircuitArtifacts(
		&circuits.Artifact{Hash: ccsHash},
		&circuits.Artifact{Hash: pkHash},
		&circuits.Artifact{Hash: vkHash},
	))
	c.Assert(err, qt.IsNil)

	// a proof from the loaded keys verifies with the original ones
	proof, err := NewProver(loaded, 1).Prove(context.Background(), 5, 1, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(NewProver(params, 1).Verify(proof.Data, proof.Commitment, 1, 10), qt.IsTrue)
}
