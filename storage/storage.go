// storage package persists the election ledger in a prefixed key-value store.
// Elections, candidates, voters and authorities are plain records, while
// transactions and blocks are written through atomic operations that keep
// the ledger invariants: a nullifier is recorded once, a voter votes once and
// the chain tip only moves forward by one block at a time.
//
// The following prefixes are used:
//   - 'e/' for elections
//   - 'c/' for candidates
//   - 'v/' for voters and 'vc/' for the access code index
//   - 'vr/' for voter reservations
//   - 'a/' for authority nodes
//   - 't/' for vote transactions and 'n/' for the nullifier index
//   - 'q/' for the pending queue, 'qr/' for its reverse index and 'qs/' for
//     its sequence counter
//   - 'b/' for blocks and 'h/' for the chain tip
//   - 'k/' for tally keys
package storage

import (
	"errors"
	"sync"
	"time"

	"go.vocdoni.io/dvote/db"
)

var (
	electionPrefix    = []byte("e/")
	candidatePrefix   = []byte("c/")
	voterPrefix       = []byte("v/")
	voterCodePrefix   = []byte("vc/")
	voterReservPrefix = []byte("vr/")
	authorityPrefix   = []byte("a/")
	txPrefix          = []byte("t/")
	nullifierPrefix   = []byte("n/")
	pendingPrefix     = []byte("q/")
	pendingRefPrefix  = []byte("qr/")
	pendingSeqPrefix  = []byte("qs/")
	blockPrefix       = []byte("b/")
	tipPrefix         = []byte("h/")
	tallyKeyPrefix    = []byte("k/")
)

const (
	// maxKeySize is the size of the truncated hashes used as key components.
	maxKeySize = 12
	// DefaultReservationTTL is how long a voter reservation is honoured if it
	// is never released.
	DefaultReservationTTL = 5 * time.Minute
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when creating a record that exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrVoterReserved is returned when another vote of the same voter is in
	// progress.
	ErrVoterReserved = errors.New("voter is reserved")
	// ErrVoterAlreadyVoted is returned when the voter has a recorded vote.
	ErrVoterAlreadyVoted = errors.New("voter already voted")
	// ErrDuplicate is returned when a transaction hash or a nullifier is
	// already recorded.
	ErrDuplicate = errors.New("duplicate transaction or nullifier")
	// ErrTipMismatch is returned when the chain tip is not the expected one.
	ErrTipMismatch = errors.New("chain tip mismatch")
	// ErrElectionFinalized is returned when writing to a finalized election.
	ErrElectionFinalized = errors.New("election finalized")
	// ErrNotPending is returned when a block references a transaction that
	// is unknown, belongs to another election or is already in a block.
	ErrNotPending = errors.New("transaction is not pending")
)

// Storage is the ledger store. A single lock serializes every
// read-check-write operation, no cryptographic work is done while holding it.
type Storage struct {
	db             db.Database
	globalLock     sync.Mutex
	reservationTTL time.Duration
}

// New creates a new Storage instance over the given database.
func New(db db.Database) *Storage {
	return &Storage{db: db, reservationTTL: DefaultReservationTTL}
}

// SetReservationTTL changes how long voter reservations last.
func (s *Storage) SetReservationTTL(ttl time.Duration) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	s.reservationTTL = ttl
}

// Close closes the storage.
func (s *Storage) Close() {
	s.db.Close()
}
