package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/election-ledger/crypto/ecies"
	"github.com/vocdoni/election-ledger/storage"
	"github.com/vocdoni/election-ledger/types"
)

// Tally counts the votes included in the blocks of an election, from the
// genesis block to the current tip, and returns the count per candidate ID.
// Every candidate is present in the result, even without votes. Pending
// transactions are not counted. The ledger is not modified.
func (l *Ledger) Tally(ctx context.Context, electionID string) (map[string]uint64, error) {
	if _, err := l.Election(electionID); err != nil {
		return nil, err
	}
	candidates, err := l.Candidates(electionID)
	if err != nil {
		return nil, err
	}
	result := make(map[string]uint64, len(candidates))
	for _, c := range candidates {
		result[c.ID] = 0
	}
	tip, err := l.stg.ChainTip(electionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return result, nil
		}
		return nil, storageError(err, ErrElectionNotFound)
	}
	tallyKey, err := l.stg.TallyKey(electionID)
	if err != nil {
		return nil, storageError(err, ErrInternal.With("missing tally key"))
	}

	for n := uint64(0); n <= tip.Number; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		block, err := l.Block(electionID, n)
		if err != nil {
			return nil, err
		}
		for _, txHash := range block.TransactionHashes {
			tx, err := l.Transaction(txHash)
			if err != nil {
				return nil, err
			}
			payload, err := openPayload(tallyKey, tx.Payload)
			if err != nil {
				return nil, ErrChainCorrupted.WithErr(fmt.Errorf("transaction %x: %w", txHash, err))
			}
			if _, ok := result[payload.CandidateID]; !ok {
				return nil, ErrChainCorrupted.Withf("transaction %x votes for unknown candidate %s", txHash, payload.CandidateID)
			}
			result[payload.CandidateID]++
		}
	}
	return result, nil
}

func openPayload(tallyKey, sealed []byte) (*types.VotePayload, error) {
	plaintext, err := ecies.Open(tallyKey, sealed)
	if err != nil {
		return nil, err
	}
	payload := &types.VotePayload{}
	if err := cbor.Unmarshal(plaintext, payload); err != nil {
		return nil, fmt.Errorf("decode vote payload: %w", err)
	}
	return payload, nil
}
