package ledger

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"github.com/vocdoni/election-ledger/authority"
	"github.com/vocdoni/election-ledger/circuits/rangeproof"
	"github.com/vocdoni/election-ledger/crypto/schnorr"
	"github.com/vocdoni/election-ledger/storage"
	"github.com/vocdoni/election-ledger/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
)

const testAuthorityID = "authority-1"

// testVoter is a registered voter together with its private key.
type testVoter struct {
	*types.Voter
	keys   *schnorr.SignKeys
	keyHex string
}

type testElection struct {
	*types.Election
	candidates []*types.Candidate
	voters     []*testVoter
}

func newTestLedger(t testing.TB, database db.Database) *Ledger {
	c := qt.New(t)
	params, err := rangeproof.DevParameters()
	c.Assert(err, qt.IsNil)

	kr := authority.NewKeyring()
	keys, err := kr.Generate(testAuthorityID)
	c.Assert(err, qt.IsNil)

	l := New(storage.New(database), kr, rangeproof.NewProver(params, 4))
	_, err = l.AddAuthority(context.Background(), testAuthorityID, keys.PublicKey(), 1)
	c.Assert(err, qt.IsNil)
	return l
}

// newTestElection creates an open election with the given candidates and
// number of voters. The genesis block is created when initialize is true.
func newTestElection(t testing.TB, l *Ledger, candidates []string, voters int, initialize bool) *testElection {
	c := qt.New(t)
	ctx := context.Background()
	election, err := l.CreateElection(ctx, "board election", time.Now().Add(-time.Hour), time.Time{})
	c.Assert(err, qt.IsNil)
	te := &testElection{Election: election}
	for _, name := range candidates {
		candidate, err := l.AddCandidate(ctx, election.ID, name, nil)
		c.Assert(err, qt.IsNil)
		te.candidates = append(te.candidates, candidate)
	}
	for i := 0; i < voters; i++ {
		keys := schnorr.NewSignKeys()
		c.Assert(keys.Generate(), qt.IsNil)
		voter, err := l.AddVoter(ctx, election.ID, uuid.NewString(), keys.PublicKey(), nil)
		c.Assert(err, qt.IsNil)
		_, priv := keys.HexString()
		te.voters = append(te.voters, &testVoter{Voter: voter, keys: keys, keyHex: priv})
	}
	if initialize {
		_, err := l.CreateGenesis(ctx, election.ID)
		c.Assert(err, qt.IsNil)
		te.Election, err = l.Election(election.ID)
		c.Assert(err, qt.IsNil)
	}
	return te
}

// failingDB makes every read fail while fail is set.
type failingDB struct {
	db.Database
	fail atomic.Bool
}

var errDiskFailure = errors.New("disk failure")

func (f *failingDB) Get(key []byte) ([]byte, error) {
	if f.fail.Load() {
		return nil, errDiskFailure
	}
	return f.Database.Get(key)
}

func (f *failingDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	if f.fail.Load() {
		return errDiskFailure
	}
	return f.Database.Iterate(prefix, callback)
}

func newMetaDB(t testing.TB) db.Database {
	return metadb.NewTest(t)
}
