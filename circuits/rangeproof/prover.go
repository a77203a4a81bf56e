package rangeproof

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/vocdoni/election-ledger/circuits"
	"github.com/vocdoni/election-ledger/log"
	"github.com/vocdoni/election-ledger/util"
	"golang.org/x/sync/semaphore"
)

// ErrProofGenerationFailed is returned when no proof can be produced, for
// example because the value is outside of the range.
var ErrProofGenerationFailed = errors.New("proof generation failed")

// Parameters are the compiled circuit and its Groth16 keys. They are
// read-only once built and can be shared by any number of goroutines.
type Parameters struct {
	CCS          constraint.ConstraintSystem
	ProvingKey   groth16.ProvingKey
	VerifyingKey groth16.VerifyingKey
}

// Setup compiles the circuit and runs a fresh Groth16 setup. The secret
// randomness of the setup is not destroyed in any verifiable way, so the
// result is only suitable for development and tests.
func Setup() (*Parameters, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &Circuit{})
	if err != nil {
		return nil, fmt.Errorf("compile range circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("setup range circuit: %w", err)
	}
	return &Parameters{CCS: ccs, ProvingKey: pk, VerifyingKey: vk}, nil
}

var (
	devOnce   sync.Once
	devParams *Parameters
	devErr    error
)

// DevParameters returns process-wide parameters from a single Setup call.
// Only for development and tests.
func DevParameters() (*Parameters, error) {
	devOnce.Do(func() {
		log.Warnw("running insecure range proof setup")
		devParams, devErr = Setup()
	})
	return devParams, devErr
}

// Encode serializes the constraint system and both keys.
func (p *Parameters) Encode() (ccs, pk, vk []byte, err error) {
	var ccsBuf, pkBuf, vkBuf bytes.Buffer
	if _, err := p.CCS.WriteTo(&ccsBuf); err != nil {
		return nil, nil, nil, fmt.Errorf("encode constraint system: %w", err)
	}
	if _, err := p.ProvingKey.WriteTo(&pkBuf); err != nil {
		return nil, nil, nil, fmt.Errorf("encode proving key: %w", err)
	}
	if _, err := p.VerifyingKey.WriteTo(&vkBuf); err != nil {
		return nil, nil, nil, fmt.Errorf("encode verifying key: %w", err)
	}
	return ccsBuf.Bytes(), pkBuf.Bytes(), vkBuf.Bytes(), nil
}

// LoadParameters loads the artifacts (from cache or remote) and decodes them.
func LoadParameters(ctx context.Context, artifacts *circuits.CircuitArtifacts) (*Parameters, error) {
	if err := artifacts.LoadAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to load range proof artifacts: %w", err)
	}
	ccs := groth16.NewCS(ecc.BN254)
	if _, err := ccs.ReadFrom(bytes.NewReader(artifacts.CircuitDefinition())); err != nil {
		return nil, fmt.Errorf("failed to read range circuit definition: %w", err)
	}
	pk := groth16.NewProvingKey(ecc.BN254)
	if _, err := pk.ReadFrom(bytes.NewReader(artifacts.ProvingKey())); err != nil {
		return nil, fmt.Errorf("failed to read range proving key: %w", err)
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(artifacts.VerifyingKey())); err != nil {
		return nil, fmt.Errorf("failed to read range verifying key: %w", err)
	}
	return &Parameters{CCS: ccs, ProvingKey: pk, VerifyingKey: vk}, nil
}

// Proof is a range proof together with its public inputs.
type Proof struct {
	Data       []byte
	Commitment []byte
	Min        uint64
	Max        uint64
}

// Prover generates and verifies range proofs. Proof generation is CPU bound,
// so at most the configured number of proofs run at the same time.
type Prover struct {
	params *Parameters
	slots  *semaphore.Weighted
}

// NewProver returns a Prover running up to workers proofs concurrently.
func NewProver(params *Parameters, workers int) *Prover {
	if workers < 1 {
		workers = 1
	}
	return &Prover{
		params: params,
		slots:  semaphore.NewWeighted(int64(workers)),
	}
}

// Prove produces a proof that value is in [min, max]. It waits for a free
// worker slot and returns early if ctx is done.
func (p *Prover) Prove(ctx context.Context, value, min, max uint64) (*Proof, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofGenerationFailed, err)
	}
	if min > max || value < min || value > max {
		return nil, fmt.Errorf("%w: value %d not in [%d, %d]", ErrProofGenerationFailed, value, min, max)
	}
	if max-min >= 1<<RangeBits {
		return nil, fmt.Errorf("%w: range wider than %d bits", ErrProofGenerationFailed, RangeBits)
	}
	blinding := util.RandomFieldElement()
	commitment, err := Commit(value, blinding)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofGenerationFailed, err)
	}
	assignment := &Circuit{
		Value:      value,
		Blinding:   blinding,
		Commitment: new(big.Int).SetBytes(commitment),
		Min:        min,
		Max:        max,
	}
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofGenerationFailed, err)
	}
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer p.slots.Release(1)
		data, err := p.prove(assignment)
		done <- result{data, err}
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrProofGenerationFailed, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProofGenerationFailed, r.err)
		}
		return &Proof{Data: r.data, Commitment: commitment, Min: min, Max: max}, nil
	}
}

func (p *Prover) prove(assignment *Circuit) ([]byte, error) {
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("failed to create witness: %w", err)
	}
	proof, err := groth16.Prove(p.params.CCS, p.params.ProvingKey, witness)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode proof: %w", err)
	}
	return buf.Bytes(), nil
}

// Verify checks a serialized proof against its public inputs. Malformed
// proofs verify as false.
func (p *Prover) Verify(data, commitment []byte, min, max uint64) bool {
	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(data)); err != nil {
		log.Debugw("cannot decode range proof", "error", err)
		return false
	}
	assignment := &Circuit{
		Value:      0,
		Blinding:   0,
		Commitment: new(big.Int).SetBytes(commitment),
		Min:        min,
		Max:        max,
	}
	publicWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		log.Debugw("cannot build range proof public witness", "error", err)
		return false
	}
	return groth16.Verify(proof, p.params.VerifyingKey, publicWitness) == nil
}
