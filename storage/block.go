package storage

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vocdoni/election-ledger/types"
)

// Tip identifies the last block of an election chain.
type Tip struct {
	Number uint64         `cbor:"0,keyasint"`
	Hash   types.HexBytes `cbor:"1,keyasint"`
}

// Equal reports whether both tips point to the same block. Two nil tips are
// equal.
func (t *Tip) Equal(other *Tip) bool {
	if t == nil || other == nil {
		return t == nil && other == nil
	}
	return t.Number == other.Number && bytes.Equal(t.Hash, other.Hash)
}

// ChainTip returns the tip of an election chain, or ErrNotFound if the
// election has no blocks yet.
func (s *Storage) ChainTip(electionID string) (*Tip, error) {
	tip := &Tip{}
	if err := s.getArtifact(tipPrefix, electionKey(electionID), tip); err != nil {
		return nil, err
	}
	return tip, nil
}

// Block retrieves a block of an election by number.
func (s *Storage) Block(electionID string, number uint64) (*types.Block, error) {
	b := &types.Block{}
	if err := s.getArtifact(blockPrefix, joinKey(electionKey(electionID), uint64Key(number)), b); err != nil {
		return nil, err
	}
	return b, nil
}

// CommitBlock appends a block to its election chain. The chain tip must still
// be expectedTip (nil when the chain is empty), otherwise ErrTipMismatch is
// returned and nothing is written. Every transaction of the block must be
// pending in the same election (ErrNotPending). In a single write the block
// is stored, its transactions are linked to it and leave the pending queue,
// and the tip advances. The genesis block also sets the election GenesisHash.
func (s *Storage) CommitBlock(block *types.Block, expectedTip *Tip) error {
	if block == nil || len(block.Hash) == 0 {
		return fmt.Errorf("nil block or empty hash")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	election, err := s.Election(block.ElectionID)
	if err != nil {
		return err
	}
	if election.Finalized {
		return ErrElectionFinalized
	}
	current, err := s.ChainTip(block.ElectionID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		current = nil
	}
	if !current.Equal(expectedTip) {
		return ErrTipMismatch
	}
	expectedNumber := uint64(types.GenesisBlockNumber)
	if current != nil {
		expectedNumber = current.Number + 1
	}
	if block.Number != expectedNumber {
		return fmt.Errorf("%w: block number %d, expected %d", ErrTipMismatch, block.Number, expectedNumber)
	}

	ek := electionKey(block.ElectionID)
	wTx := s.db.WriteTx()
	defer wTx.Discard()
	seen := make(map[string]bool, len(block.TransactionHashes))
	for _, hash := range block.TransactionHashes {
		if seen[string(hash)] {
			return fmt.Errorf("%w: %x repeated in block", ErrNotPending, hash)
		}
		seen[string(hash)] = true
		tx, err := s.Transaction(hash)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: %x unknown", ErrNotPending, hash)
			}
			return err
		}
		if tx.ElectionID != block.ElectionID || !tx.Pending() {
			return fmt.Errorf("%w: %x", ErrNotPending, hash)
		}
		var pendingKey []byte
		if err := s.getArtifact(pendingRefPrefix, hash, &pendingKey); err != nil {
			return fmt.Errorf("pending reference of %x: %w", hash, err)
		}
		number := block.Number
		tx.BlockNumber = &number
		if err := setIn(wTx, txPrefix, hash, tx); err != nil {
			return err
		}
		if err := deleteIn(wTx, pendingPrefix, pendingKey); err != nil {
			return err
		}
		if err := deleteIn(wTx, pendingRefPrefix, hash); err != nil {
			return err
		}
	}
	if err := setIn(wTx, blockPrefix, joinKey(ek, uint64Key(block.Number)), block); err != nil {
		return err
	}
	if err := setIn(wTx, tipPrefix, ek, &Tip{Number: block.Number, Hash: block.Hash}); err != nil {
		return err
	}
	if block.Number == types.GenesisBlockNumber {
		election.GenesisHash = block.Hash
		if err := setIn(wTx, electionPrefix, ek, election); err != nil {
			return err
		}
	}
	return wTx.Commit()
}
