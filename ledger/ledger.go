// Package ledger is the election ledger: it builds private vote transactions,
// groups them in authority-signed blocks and tallies the result. Every
// operation returns errors of type Error.
package ledger

import (
	"errors"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/election-ledger/authority"
	"github.com/vocdoni/election-ledger/circuits/rangeproof"
	"github.com/vocdoni/election-ledger/storage"
)

var encMode cbor.EncMode

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
}

// Ledger ties together the storage, the authority keys and the range prover.
// It is safe for concurrent use.
type Ledger struct {
	stg     *storage.Storage
	keyring *authority.Keyring
	prover  *rangeproof.Prover
	now     func() time.Time
}

// New returns a Ledger over the given collaborators.
func New(stg *storage.Storage, keyring *authority.Keyring, prover *rangeproof.Prover) *Ledger {
	return &Ledger{
		stg:     stg,
		keyring: keyring,
		prover:  prover,
		now:     time.Now,
	}
}

// Storage returns the underlying storage.
func (l *Ledger) Storage() *storage.Storage {
	return l.stg
}

// timestamp returns the current time with the precision stored in hashes.
func (l *Ledger) timestamp() time.Time {
	return l.now().UTC().Truncate(time.Second)
}

// storageError translates a storage error into a ledger error. notFound is
// used for storage.ErrNotFound, any unexpected error becomes
// ErrStorageUnavailable.
func storageError(err error, notFound Error) error {
	switch {
	case err == nil:
		return nil
	case errors.As(err, new(Error)):
		return err
	case errors.Is(err, storage.ErrNotFound):
		return notFound.WithErr(err)
	case errors.Is(err, storage.ErrAlreadyExists):
		return ErrAlreadyExists.WithErr(err)
	case errors.Is(err, storage.ErrElectionFinalized):
		return ErrElectionFinalized.WithErr(err)
	case errors.Is(err, storage.ErrVoterReserved), errors.Is(err, storage.ErrVoterAlreadyVoted):
		return ErrAlreadyVoted.WithErr(err)
	case errors.Is(err, storage.ErrDuplicate):
		return ErrDuplicateTransaction.WithErr(err)
	case errors.Is(err, storage.ErrTipMismatch):
		return ErrChainConflict.WithErr(err)
	case errors.Is(err, storage.ErrNotPending):
		return ErrTransactionNotPending.WithErr(err)
	default:
		return ErrStorageUnavailable.WithErr(err)
	}
}
