package ledger

import (
	"bytes"
	"context"
	"errors"
	"strconv"

	"github.com/vocdoni/election-ledger/crypto/merkle"
	"github.com/vocdoni/election-ledger/crypto/schnorr"
	"github.com/vocdoni/election-ledger/log"
	"github.com/vocdoni/election-ledger/storage"
	"github.com/vocdoni/election-ledger/types"
)

// Transaction returns a vote transaction by hash.
func (l *Ledger) Transaction(txHash []byte) (*types.VoteTransaction, error) {
	tx, err := l.stg.Transaction(txHash)
	if err != nil {
		return nil, storageError(err, ErrTransactionNotFound)
	}
	return tx, nil
}

// VerifyTransaction checks a recorded vote: its hash, the voter signature,
// the range proof and the ownership of its nullifier. Once included in a
// block it also checks the Merkle inclusion. An invalid transaction returns
// false and a nil error, errors are kept for lookups that fail.
func (l *Ledger) VerifyTransaction(_ context.Context, txHash []byte) (bool, error) {
	tx, err := l.Transaction(txHash)
	if err != nil {
		return false, err
	}
	fail := func(reason string) (bool, error) {
		log.Debugw("transaction verification failed", "tx", types.HexBytes(txHash).String(), "reason", reason)
		return false, nil
	}

	h, err := TransactionHash(tx)
	if err != nil {
		return false, ErrInternal.WithErr(err)
	}
	if !bytes.Equal(h, tx.Hash) || !bytes.Equal(h, txHash) {
		return fail("hash mismatch")
	}
	digest := voteDigest(tx.ElectionID, tx.Payload, tx.Nullifier, tx.Commitment)
	if !schnorr.Verify(digest, tx.Signature, tx.PublicKey) {
		return fail("invalid signature")
	}
	min, errMin := strconv.ParseUint(tx.Meta[MetaRangeMin], 10, 64)
	max, errMax := strconv.ParseUint(tx.Meta[MetaRangeMax], 10, 64)
	if errMin != nil || errMax != nil {
		return fail("missing range")
	}
	if !l.prover.Verify(tx.Proof, tx.Commitment, min, max) {
		return fail("invalid range proof")
	}
	owner, err := l.stg.NullifierOwner(tx.Nullifier)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fail("nullifier not indexed")
		}
		return false, storageError(err, ErrTransactionNotFound)
	}
	if !bytes.Equal(owner, tx.Hash) {
		return fail("nullifier owned by another transaction")
	}
	if tx.Pending() {
		return true, nil
	}
	proof, err := l.TransactionProof(tx.Hash)
	if err != nil {
		return fail(err.Error())
	}
	if !merkle.Verify(proof.MerkleRoot, proof.Index, tx.Hash, proof.Siblings) {
		return fail("not included in its block")
	}
	return true, nil
}

// InclusionProof proves that a transaction is part of a block.
type InclusionProof struct {
	ElectionID  string         `json:"electionId"`
	BlockNumber uint64         `json:"blockNumber"`
	BlockHash   types.HexBytes `json:"blockHash"`
	MerkleRoot  types.HexBytes `json:"merkleRoot"`
	Index       int            `json:"index"`
	Siblings    types.HexBytes `json:"siblings"`
}

// TransactionProof builds the Merkle inclusion proof of a transaction that is
// already in a block, a receipt the voter can check against the block root.
func (l *Ledger) TransactionProof(txHash []byte) (*InclusionProof, error) {
	tx, err := l.Transaction(txHash)
	if err != nil {
		return nil, err
	}
	if tx.Pending() {
		return nil, ErrTransactionNotPending.With("transaction is not in a block yet")
	}
	block, err := l.Block(tx.ElectionID, *tx.BlockNumber)
	if err != nil {
		return nil, err
	}
	leaves := make([][]byte, len(block.TransactionHashes))
	index := -1
	for i, h := range block.TransactionHashes {
		leaves[i] = h
		if bytes.Equal(h, txHash) {
			index = i
		}
	}
	if index < 0 {
		return nil, ErrChainCorrupted.Withf("transaction missing from block %d", block.Number)
	}
	siblings, err := merkle.Proof(leaves, index)
	if err != nil {
		return nil, ErrInternal.WithErr(err)
	}
	return &InclusionProof{
		ElectionID:  tx.ElectionID,
		BlockNumber: block.Number,
		BlockHash:   block.Hash,
		MerkleRoot:  block.MerkleRoot,
		Index:       index,
		Siblings:    siblings,
	}, nil
}
