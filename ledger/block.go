package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/vocdoni/election-ledger/crypto/hash"
	"github.com/vocdoni/election-ledger/crypto/merkle"
	"github.com/vocdoni/election-ledger/crypto/schnorr"
	"github.com/vocdoni/election-ledger/log"
	"github.com/vocdoni/election-ledger/storage"
	"github.com/vocdoni/election-ledger/types"
)

// signer returns the first active authority, by ID, whose signing key is in
// the keyring.
func (l *Ledger) signer() (*types.AuthorityNode, *schnorr.SignKeys, error) {
	nodes, err := l.stg.Authorities()
	if err != nil {
		return nil, nil, storageError(err, ErrNoActiveAuthority)
	}
	for _, node := range nodes {
		if !node.Active {
			continue
		}
		keys, err := l.keyring.SigningKey(node.ID)
		if err != nil {
			continue
		}
		if !bytes.Equal(keys.PublicKey(), node.PublicKey) {
			log.Warnw("authority key does not match the registered one", "authority", node.ID)
			continue
		}
		return node, keys, nil
	}
	return nil, nil, ErrNoActiveAuthority
}

// sealBlock builds and signs the block that follows previousHash.
func (l *Ledger) sealBlock(electionID string, number uint64, previousHash []byte, txHashes []types.HexBytes) (*types.Block, error) {
	leaves := make([][]byte, len(txHashes))
	for i, h := range txHashes {
		leaves[i] = h
	}
	root, err := merkle.Root(leaves)
	if err != nil {
		return nil, ErrInvalidArgument.WithErr(err)
	}
	node, keys, err := l.signer()
	if err != nil {
		return nil, err
	}
	block := &types.Block{
		ElectionID:        electionID,
		Number:            number,
		PreviousHash:      previousHash,
		MerkleRoot:        root,
		AuthorityID:       node.ID,
		TransactionCount:  uint32(len(txHashes)),
		TransactionHashes: txHashes,
		Timestamp:         l.timestamp(),
	}
	digest, err := hash.Object(block.Header())
	if err != nil {
		return nil, ErrInternal.WithErr(fmt.Errorf("hash block header: %w", err))
	}
	if block.Signature, err = keys.Sign(digest); err != nil {
		return nil, ErrInternal.WithErr(fmt.Errorf("sign block header: %w", err))
	}
	if block.Hash, err = blockHash(block); err != nil {
		return nil, err
	}
	return block, nil
}

// blockHash covers the header, the signer and its signature.
func blockHash(block *types.Block) ([]byte, error) {
	h, err := hash.Object(&types.SealedBlock{
		Header:      block.Header(),
		AuthorityID: block.AuthorityID,
		Signature:   block.Signature,
	})
	if err != nil {
		return nil, ErrInternal.WithErr(fmt.Errorf("hash block: %w", err))
	}
	return h, nil
}

// CreateGenesis creates block 0 of an election: no transactions, a zero
// previous hash and the empty Merkle root. The hash of the block becomes the
// election GenesisHash. A second call returns ErrGenesisAlreadyExists.
func (l *Ledger) CreateGenesis(_ context.Context, electionID string) (*types.Block, error) {
	if _, err := l.writableElection(electionID); err != nil {
		return nil, err
	}
	if _, err := l.stg.ChainTip(electionID); err == nil {
		return nil, ErrGenesisAlreadyExists.With(electionID)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, storageError(err, ErrElectionNotFound)
	}
	block, err := l.sealBlock(electionID, types.GenesisBlockNumber, types.ZeroHash(), nil)
	if err != nil {
		return nil, err
	}
	if err := l.stg.CommitBlock(block, nil); err != nil {
		if errors.Is(err, storage.ErrTipMismatch) {
			return nil, ErrGenesisAlreadyExists.WithErr(err)
		}
		return nil, storageError(err, ErrElectionNotFound)
	}
	log.Infow("genesis block created", "election", electionID, "hash", block.Hash.String())
	return block, nil
}

// AppendBlock seals the given pending transactions into the next block of
// the election chain. If another block is appended concurrently the call
// fails with ErrChainConflict and can be retried with Retry. An empty list
// produces an empty block.
func (l *Ledger) AppendBlock(_ context.Context, electionID string, txHashes []types.HexBytes) (*types.Block, error) {
	if _, err := l.writableElection(electionID); err != nil {
		return nil, err
	}
	tip, err := l.stg.ChainTip(electionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrElectionNotInitialized.With(electionID)
		}
		return nil, storageError(err, ErrElectionNotFound)
	}
	block, err := l.sealBlock(electionID, tip.Number+1, tip.Hash, txHashes)
	if err != nil {
		return nil, err
	}
	if err := l.stg.CommitBlock(block, tip); err != nil {
		return nil, storageError(err, ErrElectionNotFound)
	}
	log.Infow("block appended", "election", electionID, "number", block.Number,
		"transactions", block.TransactionCount, "hash", block.Hash.String())
	return block, nil
}

// PendingTransactions returns up to max transaction hashes waiting for a
// block, oldest first. A max of zero or less returns all of them.
func (l *Ledger) PendingTransactions(_ context.Context, electionID string, max int) ([]types.HexBytes, error) {
	hashes, err := l.stg.PendingTransactions(electionID, max)
	if err != nil {
		return nil, storageError(err, ErrElectionNotFound)
	}
	return hashes, nil
}

// Block returns a block of an election.
func (l *Ledger) Block(electionID string, number uint64) (*types.Block, error) {
	block, err := l.stg.Block(electionID, number)
	if err != nil {
		return nil, storageError(err, ErrElectionNotFound.Withf("block %d", number))
	}
	return block, nil
}

// Height returns the number of the last block of an election.
func (l *Ledger) Height(electionID string) (uint64, error) {
	tip, err := l.stg.ChainTip(electionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, ErrElectionNotInitialized.With(electionID)
		}
		return 0, storageError(err, ErrElectionNotFound)
	}
	return tip.Number, nil
}

// VerifyChain replays the chain of an election from the genesis block to the
// tip, checking numbering, links, Merkle roots, hashes and authority
// signatures. It returns ErrChainCorrupted with the first problem found.
func (l *Ledger) VerifyChain(ctx context.Context, electionID string) error {
	election, err := l.Election(electionID)
	if err != nil {
		return err
	}
	tip, err := l.stg.ChainTip(electionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrElectionNotInitialized.With(electionID)
		}
		return storageError(err, ErrElectionNotFound)
	}
	previous := types.ZeroHash()
	for n := uint64(0); n <= tip.Number; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		block, err := l.Block(electionID, n)
		if err != nil {
			return ErrChainCorrupted.WithErr(err)
		}
		if err := l.verifyBlock(block, n, previous); err != nil {
			return ErrChainCorrupted.WithErr(err)
		}
		if n == types.GenesisBlockNumber && !bytes.Equal(block.Hash, election.GenesisHash) {
			return ErrChainCorrupted.With("genesis hash does not match the election")
		}
		previous = block.Hash
	}
	if !bytes.Equal(previous, tip.Hash) {
		return ErrChainCorrupted.With("tip does not match the last block")
	}
	return nil
}

func (l *Ledger) verifyBlock(block *types.Block, number uint64, previous []byte) error {
	if block.Number != number {
		return fmt.Errorf("block %d stored with number %d", number, block.Number)
	}
	if !bytes.Equal(block.PreviousHash, previous) {
		return fmt.Errorf("block %d does not link to its predecessor", number)
	}
	if int(block.TransactionCount) != len(block.TransactionHashes) {
		return fmt.Errorf("block %d transaction count mismatch", number)
	}
	leaves := make([][]byte, len(block.TransactionHashes))
	for i, h := range block.TransactionHashes {
		leaves[i] = h
	}
	root, err := merkle.Root(leaves)
	if err != nil {
		return fmt.Errorf("block %d: %w", number, err)
	}
	if !bytes.Equal(root, block.MerkleRoot) {
		return fmt.Errorf("block %d merkle root mismatch", number)
	}
	node, err := l.stg.Authority(block.AuthorityID)
	if err != nil {
		return fmt.Errorf("block %d signer %s: %w", number, block.AuthorityID, err)
	}
	digest, err := hash.Object(block.Header())
	if err != nil {
		return err
	}
	if !schnorr.Verify(digest, block.Signature, node.PublicKey) {
		return fmt.Errorf("block %d has an invalid authority signature", number)
	}
	h, err := blockHash(block)
	if err != nil {
		return err
	}
	if !bytes.Equal(h, block.Hash) {
		return fmt.Errorf("block %d hash mismatch", number)
	}
	return nil
}
