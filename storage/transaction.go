package storage

import (
	"errors"
	"fmt"

	"github.com/vocdoni/election-ledger/types"
)

// InsertTransaction records a pending vote transaction of voterID. In a
// single write it stores the transaction, claims its nullifier, appends it
// to the pending queue of the election, marks the voter as voted and drops
// the voter reservation. It returns ErrDuplicate if the transaction hash or
// the nullifier are already recorded, and ErrVoterAlreadyVoted if the voter
// has a vote.
func (s *Storage) InsertTransaction(tx *types.VoteTransaction, voterID string) error {
	if tx == nil || len(tx.Hash) == 0 || len(tx.Nullifier) == 0 {
		return fmt.Errorf("transaction without hash or nullifier")
	}
	if !tx.Pending() {
		return fmt.Errorf("transaction already has a block")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	election, err := s.Election(tx.ElectionID)
	if err != nil {
		return err
	}
	if election.Finalized {
		return ErrElectionFinalized
	}
	for prefix, key := range map[string][]byte{
		string(txPrefix):        tx.Hash,
		string(nullifierPrefix): tx.Nullifier,
	} {
		exists, err := s.has([]byte(prefix), key)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicate
		}
	}
	voter, err := s.Voter(tx.ElectionID, voterID)
	if err != nil {
		return err
	}
	if voter.HasVoted {
		return ErrVoterAlreadyVoted
	}
	seq, err := s.nextPendingSeq(tx.ElectionID)
	if err != nil {
		return err
	}

	ek := electionKey(tx.ElectionID)
	pendingKey := joinKey(ek, uint64Key(seq))
	voter.HasVoted = true
	voter.Nullifier = tx.Nullifier

	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := setIn(wTx, txPrefix, tx.Hash, tx); err != nil {
		return err
	}
	if err := setIn(wTx, nullifierPrefix, tx.Nullifier, tx.Hash); err != nil {
		return err
	}
	if err := setIn(wTx, pendingPrefix, pendingKey, tx.Hash); err != nil {
		return err
	}
	if err := setIn(wTx, pendingRefPrefix, tx.Hash, pendingKey); err != nil {
		return err
	}
	if err := setIn(wTx, pendingSeqPrefix, ek, seq); err != nil {
		return err
	}
	if err := setIn(wTx, voterPrefix, voterKey(tx.ElectionID, voterID), voter); err != nil {
		return err
	}
	if err := deleteIn(wTx, voterReservPrefix, voterKey(tx.ElectionID, voterID)); err != nil {
		return err
	}
	return wTx.Commit()
}

// nextPendingSeq must be called with the global lock held.
func (s *Storage) nextPendingSeq(electionID string) (uint64, error) {
	var seq uint64
	if err := s.getArtifact(pendingSeqPrefix, electionKey(electionID), &seq); err != nil {
		if errors.Is(err, ErrNotFound) {
			return 1, nil
		}
		return 0, err
	}
	return seq + 1, nil
}

// Transaction retrieves a vote transaction by its hash.
func (s *Storage) Transaction(hash []byte) (*types.VoteTransaction, error) {
	tx := &types.VoteTransaction{}
	if err := s.getArtifact(txPrefix, hash, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// NullifierOwner returns the hash of the transaction that claimed the
// nullifier.
func (s *Storage) NullifierOwner(nullifier []byte) (types.HexBytes, error) {
	var hash []byte
	if err := s.getArtifact(nullifierPrefix, nullifier, &hash); err != nil {
		return nil, err
	}
	return hash, nil
}

// PendingTransactions returns up to max pending transaction hashes of an
// election in insertion order. A max of zero or less means no limit.
func (s *Storage) PendingTransactions(electionID string, max int) ([]types.HexBytes, error) {
	var hashes []types.HexBytes
	var decodeErr error
	if err := s.iterate(pendingPrefix, electionKey(electionID), func(k, v []byte) bool {
		if max > 0 && len(hashes) >= max {
			return false
		}
		if len(k) != 8 {
			return true
		}
		var hash []byte
		if err := decodeArtifact(v, &hash); err != nil {
			decodeErr = err
			return false
		}
		hashes = append(hashes, hash)
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate pending transactions: %w", err)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode pending transaction: %w", decodeErr)
	}
	return hashes, nil
}

// CountPendingTransactions returns the number of pending transactions of an
// election.
func (s *Storage) CountPendingTransactions(electionID string) (int, error) {
	count := 0
	if err := s.iterate(pendingPrefix, electionKey(electionID), func(_, _ []byte) bool {
		count++
		return true
	}); err != nil {
		return 0, fmt.Errorf("count pending transactions: %w", err)
	}
	return count, nil
}
