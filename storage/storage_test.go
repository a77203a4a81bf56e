package storage

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"github.com/vocdoni/election-ledger/crypto/hash"
	"github.com/vocdoni/election-ledger/types"
	"go.vocdoni.io/dvote/db/metadb"
	"golang.org/x/sync/errgroup"
)

func newTestElection(c *qt.C, stg *Storage) *types.Election {
	e := &types.Election{ID: uuid.NewString(), Title: "board election"}
	c.Assert(stg.NewElection(e), qt.IsNil)
	return e
}

func newTestVoter(c *qt.C, stg *Storage, electionID string) *types.Voter {
	v := &types.Voter{
		ID:             uuid.NewString(),
		ElectionID:     electionID,
		AccessCodeHash: hash.Sum([]byte(uuid.NewString())),
	}
	c.Assert(stg.AddVoter(v), qt.IsNil)
	return v
}

func newTestTx(electionID, voterID string) *types.VoteTransaction {
	return &types.VoteTransaction{
		Hash:       hash.Sum([]byte("tx"), []byte(voterID)),
		ElectionID: electionID,
		Payload:    []byte("sealed"),
		Nullifier:  hash.Sum([]byte("nullifier"), []byte(voterID)),
		CreatedAt:  time.Now().Truncate(time.Second),
	}
}

func TestElections(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	e := newTestElection(c, stg)
	c.Assert(stg.NewElection(&types.Election{ID: e.ID}), qt.ErrorIs, ErrAlreadyExists)

	got, err := stg.Election(e.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Title, qt.Equals, e.Title)
	_, err = stg.Election("missing")
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	e2 := newTestElection(c, stg)
	ids, err := stg.ListElections()
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 2)
	c.Assert(ids, qt.Contains, e.ID)
	c.Assert(ids, qt.Contains, e2.ID)

	c.Assert(stg.SetTallyKey(e.ID, []byte("secret")), qt.IsNil)
	key, err := stg.TallyKey(e.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(key, qt.DeepEquals, []byte("secret"))
	_, err = stg.TallyKey(e2.ID)
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	finalized, err := stg.FinalizeElection(e.ID, time.Now())
	c.Assert(err, qt.IsNil)
	c.Assert(finalized.Finalized, qt.IsTrue)
	_, err = stg.FinalizeElection(e.ID, time.Now())
	c.Assert(err, qt.ErrorIs, ErrElectionFinalized)
}

func TestCandidatesAndAuthorities(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))
	e := newTestElection(c, stg)

	for _, name := range []string{"Alice", "Bob"} {
		c.Assert(stg.AddCandidate(&types.Candidate{ID: name, ElectionID: e.ID, Name: name}), qt.IsNil)
	}
	c.Assert(stg.AddCandidate(&types.Candidate{ID: "Alice", ElectionID: e.ID}), qt.ErrorIs, ErrAlreadyExists)
	c.Assert(stg.AddCandidate(&types.Candidate{ID: "Carol", ElectionID: "missing"}), qt.ErrorIs, ErrNotFound)

	list, err := stg.Candidates(e.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 2)
	c.Assert(list[0].ID, qt.Equals, "Alice")
	c.Assert(list[0].Index, qt.Equals, uint32(1))
	c.Assert(list[1].Index, qt.Equals, uint32(2))

	bob, err := stg.Candidate(e.ID, "Bob")
	c.Assert(err, qt.IsNil)
	c.Assert(bob.Index, qt.Equals, uint32(2))

	c.Assert(stg.SetAuthority(&types.AuthorityNode{ID: "node-b", Active: true}), qt.IsNil)
	c.Assert(stg.SetAuthority(&types.AuthorityNode{ID: "node-a", Active: false}), qt.IsNil)
	auths, err := stg.Authorities()
	c.Assert(err, qt.IsNil)
	c.Assert(auths, qt.HasLen, 2)
	c.Assert(auths[0].ID, qt.Equals, "node-a")
}

func TestVoterReservation(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))
	e := newTestElection(c, stg)
	v := newTestVoter(c, stg, e.ID)

	byCode, err := stg.VoterByAccessCode(e.ID, v.AccessCodeHash)
	c.Assert(err, qt.IsNil)
	c.Assert(byCode.ID, qt.Equals, v.ID)
	// the access code hash is unique inside the election
	c.Assert(stg.AddVoter(&types.Voter{ID: "other", ElectionID: e.ID, AccessCodeHash: v.AccessCodeHash}), qt.ErrorIs, ErrAlreadyExists)

	c.Assert(stg.ReserveVoter(e.ID, v.ID), qt.IsNil)
	c.Assert(stg.ReserveVoter(e.ID, v.ID), qt.ErrorIs, ErrVoterReserved)
	c.Assert(stg.ReleaseVoter(e.ID, v.ID), qt.IsNil)
	c.Assert(stg.ReserveVoter(e.ID, v.ID), qt.IsNil)

	// expired reservations are ignored
	stg.SetReservationTTL(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	reserved, err := stg.IsVoterReserved(e.ID, v.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(reserved, qt.IsFalse)
	c.Assert(stg.ReserveVoter(e.ID, v.ID), qt.IsNil)

	c.Assert(stg.ReserveVoter(e.ID, "missing"), qt.ErrorIs, ErrNotFound)
}

func TestInsertTransaction(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))
	e := newTestElection(c, stg)
	v1 := newTestVoter(c, stg, e.ID)
	v2 := newTestVoter(c, stg, e.ID)

	c.Assert(stg.ReserveVoter(e.ID, v1.ID), qt.IsNil)
	tx1 := newTestTx(e.ID, v1.ID)
	c.Assert(stg.InsertTransaction(tx1, v1.ID), qt.IsNil)

	voter, err := stg.Voter(e.ID, v1.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(voter.HasVoted, qt.IsTrue)
	c.Assert([]byte(voter.Nullifier), qt.DeepEquals, []byte(tx1.Nullifier))
	reserved, err := stg.IsVoterReserved(e.ID, v1.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(reserved, qt.IsFalse)
	c.Assert(stg.ReserveVoter(e.ID, v1.ID), qt.ErrorIs, ErrVoterAlreadyVoted)

	owner, err := stg.NullifierOwner(tx1.Nullifier)
	c.Assert(err, qt.IsNil)
	c.Assert([]byte(owner), qt.DeepEquals, []byte(tx1.Hash))

	// same hash, same nullifier
	c.Assert(stg.InsertTransaction(tx1, v2.ID), qt.ErrorIs, ErrDuplicate)
	sameNullifier := newTestTx(e.ID, v2.ID)
	sameNullifier.Nullifier = tx1.Nullifier
	c.Assert(stg.InsertTransaction(sameNullifier, v2.ID), qt.ErrorIs, ErrDuplicate)

	tx2 := newTestTx(e.ID, v2.ID)
	c.Assert(stg.InsertTransaction(tx2, v2.ID), qt.IsNil)

	pending, err := stg.PendingTransactions(e.ID, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(pending, qt.HasLen, 2)
	c.Assert([]byte(pending[0]), qt.DeepEquals, []byte(tx1.Hash))
	c.Assert([]byte(pending[1]), qt.DeepEquals, []byte(tx2.Hash))
	limited, err := stg.PendingTransactions(e.ID, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(limited, qt.HasLen, 1)

	stored, err := stg.Transaction(tx2.Hash)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.Pending(), qt.IsTrue)
	c.Assert(stored.CreatedAt.Unix(), qt.Equals, tx2.CreatedAt.Unix())
}

func TestConcurrentNullifier(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))
	e := newTestElection(c, stg)

	const n = 10
	nullifier := hash.Sum([]byte("shared"))
	var ok atomic.Int32
	var g errgroup.Group
	for i := 0; i < n; i++ {
		v := newTestVoter(c, stg, e.ID)
		tx := newTestTx(e.ID, v.ID)
		tx.Nullifier = nullifier
		g.Go(func() error {
			err := stg.InsertTransaction(tx, v.ID)
			switch {
			case err == nil:
				ok.Add(1)
				return nil
			case errors.Is(err, ErrDuplicate):
				return nil
			default:
				return err
			}
		})
	}
	c.Assert(g.Wait(), qt.IsNil)
	c.Assert(ok.Load(), qt.Equals, int32(1))
}

func TestCommitBlock(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))
	e := newTestElection(c, stg)

	genesis := &types.Block{ElectionID: e.ID, Number: 0, Hash: hash.Sum([]byte("genesis"))}
	c.Assert(stg.CommitBlock(genesis, nil), qt.IsNil)
	c.Assert(stg.CommitBlock(genesis, nil), qt.ErrorIs, ErrTipMismatch)

	stored, err := stg.Election(e.ID)
	c.Assert(err, qt.IsNil)
	c.Assert([]byte(stored.GenesisHash), qt.DeepEquals, []byte(genesis.Hash))

	var hashes []types.HexBytes
	for i := 0; i < 3; i++ {
		v := newTestVoter(c, stg, e.ID)
		tx := newTestTx(e.ID, v.ID)
		c.Assert(stg.InsertTransaction(tx, v.ID), qt.IsNil)
		hashes = append(hashes, tx.Hash)
	}

	tip, err := stg.ChainTip(e.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(tip.Number, qt.Equals, uint64(0))

	block := &types.Block{
		ElectionID:        e.ID,
		Number:            1,
		PreviousHash:      genesis.Hash,
		Hash:              hash.Sum([]byte("block 1")),
		TransactionHashes: hashes[:2],
		TransactionCount:  2,
	}
	// wrong number
	wrong := *block
	wrong.Number = 2
	c.Assert(stg.CommitBlock(&wrong, tip), qt.ErrorIs, ErrTipMismatch)
	// unknown transaction
	unknown := *block
	unknown.TransactionHashes = []types.HexBytes{hash.Sum([]byte("unknown"))}
	c.Assert(stg.CommitBlock(&unknown, tip), qt.ErrorIs, ErrNotPending)

	c.Assert(stg.CommitBlock(block, tip), qt.IsNil)
	// the old tip is stale now
	stale := *block
	stale.Hash = hash.Sum([]byte("fork"))
	stale.TransactionHashes = nil
	c.Assert(stg.CommitBlock(&stale, tip), qt.ErrorIs, ErrTipMismatch)

	for i, h := range hashes {
		tx, err := stg.Transaction(h)
		c.Assert(err, qt.IsNil)
		if i < 2 {
			c.Assert(tx.Pending(), qt.IsFalse)
			c.Assert(*tx.BlockNumber, qt.Equals, uint64(1))
		} else {
			c.Assert(tx.Pending(), qt.IsTrue)
		}
	}
	pending, err := stg.PendingTransactions(e.ID, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(pending, qt.HasLen, 1)
	c.Assert([]byte(pending[0]), qt.DeepEquals, []byte(hashes[2]))

	// a transaction cannot be included twice
	newTip, err := stg.ChainTip(e.ID)
	c.Assert(err, qt.IsNil)
	again := &types.Block{ElectionID: e.ID, Number: 2, Hash: hash.Sum([]byte("block 2")), TransactionHashes: hashes[:1]}
	c.Assert(stg.CommitBlock(again, newTip), qt.ErrorIs, ErrNotPending)

	got, err := stg.Block(e.ID, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(got.TransactionHashes, qt.HasLen, 2)

	// transactions of another election are rejected
	other := newTestElection(c, stg)
	c.Assert(stg.CommitBlock(&types.Block{ElectionID: other.ID, Hash: hash.Sum([]byte("g2"))}, nil), qt.IsNil)
	otherTip, err := stg.ChainTip(other.ID)
	c.Assert(err, qt.IsNil)
	cross := &types.Block{ElectionID: other.ID, Number: 1, Hash: hash.Sum([]byte("x")), TransactionHashes: hashes[2:]}
	c.Assert(stg.CommitBlock(cross, otherTip), qt.ErrorIs, ErrNotPending)

	_, err = stg.FinalizeElection(e.ID, time.Now())
	c.Assert(err, qt.IsNil)
	final := &types.Block{ElectionID: e.ID, Number: 2, Hash: hash.Sum([]byte("late"))}
	c.Assert(stg.CommitBlock(final, newTip), qt.ErrorIs, ErrElectionFinalized)
	late := newTestVoter(c, stg, e.ID)
	c.Assert(stg.InsertTransaction(newTestTx(e.ID, late.ID), late.ID), qt.ErrorIs, ErrElectionFinalized)
}

func BenchmarkInsertTransaction(b *testing.B) {
	stg := New(metadb.NewTest(b))
	e := &types.Election{ID: uuid.NewString()}
	if err := stg.NewElection(e); err != nil {
		b.Fatal(err)
	}
	voters := make([]string, b.N)
	for i := range voters {
		voters[i] = fmt.Sprintf("voter-%d", i)
		if err := stg.AddVoter(&types.Voter{ID: voters[i], ElectionID: e.ID}); err != nil {
			b.Fatal(err)
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := stg.InsertTransaction(newTestTx(e.ID, voters[i]), voters[i]); err != nil {
			b.Fatal(err)
		}
	}
}
