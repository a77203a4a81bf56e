// Package service assembles a running ledger node from its configuration.
package service

import (
	"context"
	"fmt"

	"github.com/vocdoni/election-ledger/authority"
	"github.com/vocdoni/election-ledger/circuits/rangeproof"
	"github.com/vocdoni/election-ledger/config"
	"github.com/vocdoni/election-ledger/ledger"
	"github.com/vocdoni/election-ledger/log"
	"github.com/vocdoni/election-ledger/sequencer"
	"github.com/vocdoni/election-ledger/storage"
	"go.vocdoni.io/dvote/db/metadb"
)

// LedgerService owns the storage, the ledger and the block sequencer of a
// node.
type LedgerService struct {
	stg       *storage.Storage
	ledger    *ledger.Ledger
	sequencer *sequencer.Sequencer
}

// NewLedger opens the database in cfg.DataDir and builds the ledger and its
// sequencer. The authority keys are parsed from cfg.AuthorityKeys.
func NewLedger(cfg *config.Config, params *rangeproof.Parameters) (*LedgerService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	keyring, err := authority.ParseKeyring(cfg.AuthorityKeys)
	if err != nil {
		return nil, err
	}
	if len(keyring.IDs()) == 0 {
		log.Warnw("no authority keys configured, blocks cannot be produced")
	}
	database, err := metadb.New(cfg.DBType, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	stg := storage.New(database)
	stg.SetReservationTTL(cfg.ReservationTTL)

	l := ledger.New(stg, keyring, rangeproof.NewProver(params, cfg.ProverWorkers))
	seq, err := sequencer.New(l, cfg.BatchSize, cfg.BatchTimeWindow, cfg.TickInterval)
	if err != nil {
		stg.Close()
		return nil, err
	}
	return &LedgerService{stg: stg, ledger: l, sequencer: seq}, nil
}

// Start begins producing blocks.
func (ls *LedgerService) Start(ctx context.Context) error {
	return ls.sequencer.Start(ctx)
}

// Stop halts the sequencer and closes the database.
func (ls *LedgerService) Stop() {
	if err := ls.sequencer.Stop(); err != nil {
		log.Warnw("sequencer service stopped", "error", err)
	}
	ls.stg.Close()
}

// Ledger returns the ledger of the node.
func (ls *LedgerService) Ledger() *ledger.Ledger {
	return ls.ledger
}

// Sequencer returns the block producer of the node, so new elections can be
// registered once their genesis block exists.
func (ls *LedgerService) Sequencer() *sequencer.Sequencer {
	return ls.sequencer
}
