package sequencer

import (
	"context"
	"time"

	"github.com/vocdoni/election-ledger/ledger"
	"github.com/vocdoni/election-ledger/log"
	"github.com/vocdoni/election-ledger/types"
)

// ProduceBlock seals up to batchSize pending votes of an election, oldest
// first, into its next block. A chain conflict with another producer is
// retried with a fresh list of pending votes. It returns a nil block if
// there was nothing to seal.
func (s *Sequencer) ProduceBlock(ctx context.Context, electionID string) (*types.Block, error) {
	var block *types.Block
	err := ledger.Retry(ctx, func() error {
		pending, err := s.ledger.PendingTransactions(ctx, electionID, s.batchSize)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			block = nil
			return nil
		}
		block, err = s.ledger.AppendBlock(ctx, electionID, pending)
		return err
	})
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, nil
	}

	s.electionsLock.Lock()
	if _, ok := s.elections[electionID]; ok {
		s.elections[electionID] = time.Now()
	}
	s.electionsLock.Unlock()

	log.Infow("block produced",
		"election", electionID,
		"number", block.Number,
		"transactions", block.TransactionCount,
	)
	return block, nil
}
