package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/vocdoni/election-ledger/circuits"
	"github.com/vocdoni/election-ledger/types"
)

// RangeProofArtifacts locates the parameter files of the range proof circuit.
// The hashes are the ones printed by rangeproof-setup. Files missing from
// the local cache are downloaded from BaseURL/<hash>.
type RangeProofArtifacts struct {
	BaseURL          string
	CircuitHash      string
	ProvingKeyHash   string
	VerifyingKeyHash string
}

// rangeProofArtifactsFromEnv reads LEDGER_RANGEPROOF_* variables.
func rangeProofArtifactsFromEnv() RangeProofArtifacts {
	return RangeProofArtifacts{
		BaseURL:          strings.TrimSuffix(os.Getenv("LEDGER_RANGEPROOF_URL"), "/"),
		CircuitHash:      os.Getenv("LEDGER_RANGEPROOF_CIRCUIT_HASH"),
		ProvingKeyHash:   os.Getenv("LEDGER_RANGEPROOF_PROVING_KEY_HASH"),
		VerifyingKeyHash: os.Getenv("LEDGER_RANGEPROOF_VERIFYING_KEY_HASH"),
	}
}

// Configured reports whether all the artifact hashes are set.
func (r RangeProofArtifacts) Configured() bool {
	return r.CircuitHash != "" && r.ProvingKeyHash != "" && r.VerifyingKeyHash != ""
}

func (r RangeProofArtifacts) validate() error {
	if r.CircuitHash == "" && r.ProvingKeyHash == "" && r.VerifyingKeyHash == "" {
		return nil
	}
	for name, h := range map[string]string{
		"circuit":       r.CircuitHash,
		"proving key":   r.ProvingKeyHash,
		"verifying key": r.VerifyingKeyHash,
	} {
		b, err := hex.DecodeString(strings.TrimPrefix(h, "0x"))
		if err != nil || len(b) != types.HashSize {
			return fmt.Errorf("invalid range proof %s hash %q", name, h)
		}
	}
	return nil
}

// CircuitArtifacts returns the artifact set to load, or nil if the hashes
// are not configured.
func (r RangeProofArtifacts) CircuitArtifacts() *circuits.CircuitArtifacts {
	if !r.Configured() {
		return nil
	}
	return circuits.NewCircuitArtifacts(
		r.artifact(r.CircuitHash),
		r.artifact(r.ProvingKeyHash),
		r.artifact(r.VerifyingKeyHash),
	)
}

func (r RangeProofArtifacts) artifact(hash string) *circuits.Artifact {
	a := &circuits.Artifact{Hash: types.HexStringToHexBytes(hash)}
	if r.BaseURL != "" {
		a.RemoteURL = r.BaseURL + "/" + strings.TrimPrefix(hash, "0x")
	}
	return a
}
