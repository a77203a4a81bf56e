// Package sequencer produces the blocks of the election ledger. It watches the
// pending transactions of the registered elections and seals them into
// authority-signed blocks, either when a batch is full or when the oldest
// vote has waited long enough.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vocdoni/election-ledger/ledger"
	"github.com/vocdoni/election-ledger/log"
)

// Sequencer is a worker that groups the pending votes of each registered
// election into blocks.
type Sequencer struct {
	ledger *ledger.Ledger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	elections     map[string]time.Time // election ID to the time of its last block
	electionsLock sync.RWMutex         // protects elections

	// batchSize is the number of pending votes that triggers a block.
	batchSize int
	// maxTimeWindow is the maximum time a pending vote waits for a block. If
	// it elapses, the block is produced even if the batch is not full.
	maxTimeWindow time.Duration
	tickInterval  time.Duration
}

// New creates a Sequencer over the given ledger.
//
// Parameters:
//   - l: the ledger used to read pending votes and append blocks
//   - batchSize: number of pending votes that triggers a block
//   - batchTimeWindow: maximum time to wait before producing a block even if not full
//   - tickInterval: how often the pending votes are checked
func New(l *ledger.Ledger, batchSize int, batchTimeWindow, tickInterval time.Duration) (*Sequencer, error) {
	if l == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}
	if batchTimeWindow <= 0 || tickInterval <= 0 {
		return nil, fmt.Errorf("batch time window and tick interval must be positive")
	}
	log.Debugw("sequencer initialized",
		"batchSize", batchSize,
		"batchTimeWindow", batchTimeWindow,
		"tickInterval", tickInterval,
	)
	return &Sequencer{
		ledger:        l,
		elections:     make(map[string]time.Time),
		batchSize:     batchSize,
		maxTimeWindow: batchTimeWindow,
		tickInterval:  tickInterval,
	}, nil
}

// Start registers the initialized elections that are not finalized and
// begins producing blocks in the background until Stop is called or ctx is
// canceled.
func (s *Sequencer) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context cannot be nil")
	}
	ids, err := s.ledger.Storage().ListElections()
	if err != nil {
		return fmt.Errorf("failed to list elections: %w", err)
	}
	for _, id := range ids {
		election, err := s.ledger.Election(id)
		if err != nil {
			return fmt.Errorf("failed to load election %s: %w", id, err)
		}
		if !election.Finalized && len(election.GenesisHash) > 0 {
			s.AddElection(id)
		}
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run()
	log.Infow("sequencer started successfully", "elections", len(ids))
	return nil
}

// Stop shuts down the sequencer and waits for the block in progress, if any.
// It's safe to call Stop multiple times.
func (s *Sequencer) Stop() error {
	if s.cancel != nil {
		s.cancel()
		s.wg.Wait()
		log.Infow("sequencer stopped")
	}
	return nil
}

func (s *Sequencer) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.processPendingBatches()
		}
	}
}

// AddElection registers an election for block production. If the election
// is already registered, this operation has no effect.
func (s *Sequencer) AddElection(electionID string) {
	if electionID == "" {
		log.Warnw("attempted to add empty election ID")
		return
	}
	s.electionsLock.Lock()
	defer s.electionsLock.Unlock()
	if _, exists := s.elections[electionID]; exists {
		return
	}
	s.elections[electionID] = time.Now()
	log.Infow("election registered for sequencing", "election", electionID)
}

// DelElection unregisters an election.
func (s *Sequencer) DelElection(electionID string) {
	s.electionsLock.Lock()
	defer s.electionsLock.Unlock()
	if _, exists := s.elections[electionID]; exists {
		delete(s.elections, electionID)
		log.Infow("election unregistered from sequencing", "election", electionID)
	}
}

// Elections returns the IDs of the registered elections.
func (s *Sequencer) Elections() []string {
	s.electionsLock.RLock()
	defer s.electionsLock.RUnlock()
	ids := make([]string, 0, len(s.elections))
	for id := range s.elections {
		ids = append(ids, id)
	}
	return ids
}

// processPendingBatches produces a block for every registered election whose
// batch is ready. A batch is ready when either:
//  1. it holds at least batchSize pending votes, or
//  2. it holds some pending votes and the time since the last block exceeds
//     maxTimeWindow
func (s *Sequencer) processPendingBatches() {
	// copy to avoid holding the lock while producing blocks
	s.electionsLock.RLock()
	elections := make(map[string]time.Time, len(s.elections))
	for k, v := range s.elections {
		elections[k] = v
	}
	s.electionsLock.RUnlock()

	for id, lastBlock := range elections {
		if s.ctx.Err() != nil {
			return
		}
		count, err := s.ledger.Storage().CountPendingTransactions(id)
		if err != nil {
			log.Warnw("failed to count pending votes", "election", id, "error", err.Error())
			continue
		}
		sinceLastBlock := time.Since(lastBlock)
		if count == 0 || (count < s.batchSize && sinceLastBlock <= s.maxTimeWindow) {
			continue
		}
		log.Debugw("batch ready for sealing",
			"election", id,
			"pending", count,
			"sinceLastBlock", sinceLastBlock.String(),
		)
		if _, err := s.ProduceBlock(s.ctx, id); err != nil {
			if errors.Is(err, ledger.ErrElectionFinalized) || errors.Is(err, ledger.ErrElectionNotFound) {
				s.DelElection(id)
				continue
			}
			log.Warnw("failed to produce block", "election", id, "error", err.Error())
		}
	}
}
