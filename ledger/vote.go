package ledger

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/vocdoni/election-ledger/crypto/ecies"
	"github.com/vocdoni/election-ledger/crypto/hash"
	"github.com/vocdoni/election-ledger/crypto/schnorr"
	"github.com/vocdoni/election-ledger/log"
	"github.com/vocdoni/election-ledger/types"
)

// Meta keys of a vote transaction, the public inputs of its range proof.
const (
	MetaRangeMin = "rangeMin"
	MetaRangeMax = "rangeMax"
)

// txPreimage is the content covered by the transaction hash.
type txPreimage struct {
	ElectionID string            `cbor:"0,keyasint"`
	Payload    []byte            `cbor:"1,keyasint"`
	Signature  []byte            `cbor:"2,keyasint"`
	PublicKey  []byte            `cbor:"3,keyasint"`
	Proof      []byte            `cbor:"4,keyasint"`
	Commitment []byte            `cbor:"5,keyasint"`
	Nullifier  []byte            `cbor:"6,keyasint"`
	CreatedAt  int64             `cbor:"7,keyasint"`
	Meta       map[string]string `cbor:"8,keyasint,omitempty"`
}

// TransactionHash computes the hash of a vote transaction. The block number
// is not covered, it changes when the transaction is included.
func TransactionHash(tx *types.VoteTransaction) ([]byte, error) {
	return hash.Object(&txPreimage{
		ElectionID: tx.ElectionID,
		Payload:    tx.Payload,
		Signature:  tx.Signature,
		PublicKey:  tx.PublicKey,
		Proof:      tx.Proof,
		Commitment: tx.Commitment,
		Nullifier:  tx.Nullifier,
		CreatedAt:  tx.CreatedAt.Unix(),
		Meta:       tx.Meta,
	})
}

// voteDigest is the message signed by the voter.
func voteDigest(electionID string, payload, nullifier, commitment []byte) []byte {
	return hash.Sum([]byte(electionID), payload, nullifier, commitment)
}

// CastVote records the vote of a voter for a candidate and returns the hash of
// the resulting pending transaction. The choice is sealed to the election
// tally key and proven to be a valid candidate index without revealing it.
// privKeyHex is the voter's 32-byte Schnorr key in hex.
//
// A voter votes once: concurrent or repeated calls for the same voter fail
// with ErrAlreadyVoted, and a repeated nullifier with ErrDuplicateTransaction.
func (l *Ledger) CastVote(ctx context.Context, electionID, voterID, candidateID, privKeyHex string) (types.HexBytes, error) {
	election, err := l.writableElection(electionID)
	if err != nil {
		return nil, err
	}
	if len(election.GenesisHash) == 0 {
		return nil, ErrElectionNotInitialized.With(electionID)
	}
	now := l.timestamp()
	if !election.IsOpen(now) {
		return nil, ErrElectionNotOpen.With(electionID)
	}
	voter, err := l.stg.Voter(electionID, voterID)
	if err != nil {
		return nil, storageError(err, ErrVoterNotFound)
	}
	if voter.HasVoted {
		return nil, ErrAlreadyVoted
	}
	candidate, err := l.stg.Candidate(electionID, candidateID)
	if err != nil {
		return nil, storageError(err, ErrCandidateNotFound)
	}
	candidates, err := l.stg.Candidates(electionID)
	if err != nil {
		return nil, storageError(err, ErrElectionNotFound)
	}

	keys := schnorr.NewSignKeys()
	if err := keys.AddHexKey(privKeyHex); err != nil {
		return nil, ErrInvalidKeyFormat.WithErr(err)
	}
	if len(voter.PublicKey) > 0 && !bytes.Equal(voter.PublicKey, keys.PublicKey()) {
		return nil, ErrKeyMismatch
	}
	if voter.WalletAddress != nil && *voter.WalletAddress != keys.Address() {
		return nil, ErrKeyMismatch
	}

	if err := l.stg.ReserveVoter(electionID, voterID); err != nil {
		return nil, storageError(err, ErrVoterNotFound)
	}
	recorded := false
	defer func() {
		if recorded {
			return
		}
		if err := l.stg.ReleaseVoter(electionID, voterID); err != nil {
			log.Warnw("cannot release voter reservation", "election", electionID, "voter", voterID, "error", err.Error())
		}
	}()

	nullifier := hash.Nullifier(voterID, keys.PrivateKey())
	plaintext, err := encMode.Marshal(&types.VotePayload{
		CandidateID:    candidate.ID,
		CandidateIndex: candidate.Index,
		VoterID:        voterID,
		Timestamp:      now.Unix(),
	})
	if err != nil {
		return nil, ErrInternal.WithErr(fmt.Errorf("encode vote payload: %w", err))
	}
	payload, err := ecies.Seal(election.TallyPublicKey, plaintext)
	if err != nil {
		return nil, ErrInternal.WithErr(fmt.Errorf("seal vote payload: %w", err))
	}

	min, max := uint64(types.MinCandidateIndex), uint64(len(candidates))
	proof, err := l.prover.Prove(ctx, uint64(candidate.Index), min, max)
	if err != nil {
		return nil, ErrProofGenerationFailed.WithErr(err)
	}

	signature, err := keys.Sign(voteDigest(electionID, payload, nullifier, proof.Commitment))
	if err != nil {
		return nil, ErrInvalidKeyFormat.WithErr(err)
	}
	tx := &types.VoteTransaction{
		ElectionID: electionID,
		Payload:    payload,
		Signature:  signature,
		PublicKey:  keys.PublicKey(),
		Proof:      proof.Data,
		Commitment: proof.Commitment,
		Nullifier:  nullifier,
		CreatedAt:  now,
		Meta: map[string]string{
			MetaRangeMin: strconv.FormatUint(min, 10),
			MetaRangeMax: strconv.FormatUint(max, 10),
		},
	}
	if tx.Hash, err = TransactionHash(tx); err != nil {
		return nil, ErrInternal.WithErr(fmt.Errorf("hash transaction: %w", err))
	}
	if err := l.stg.InsertTransaction(tx, voterID); err != nil {
		return nil, storageError(err, ErrVoterNotFound)
	}
	recorded = true
	log.Infow("vote cast", "election", electionID, "tx", tx.Hash.String())
	return tx.Hash, nil
}
