package ledger

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/vocdoni/election-ledger/crypto/ecies"
	"github.com/vocdoni/election-ledger/crypto/hash"
	"github.com/vocdoni/election-ledger/crypto/schnorr"
	"github.com/vocdoni/election-ledger/log"
	"github.com/vocdoni/election-ledger/types"
)

// CreateElection registers a new election with a fresh tally key pair. The
// election stays uninitialized until CreateGenesis is called. A zero closeAt
// leaves the voting window open until the election is finalized.
func (l *Ledger) CreateElection(_ context.Context, title string, openAt, closeAt time.Time) (*types.Election, error) {
	if !closeAt.IsZero() && !closeAt.After(openAt) {
		return nil, ErrInvalidArgument.Withf("close time %s is not after open time %s", closeAt, openAt)
	}
	priv, pub := ecies.GenerateKeyPair()
	election := &types.Election{
		ID:             uuid.NewString(),
		Title:          title,
		OpenAt:         openAt.UTC().Truncate(time.Second),
		CloseAt:        closeAt.UTC().Truncate(time.Second),
		TallyPublicKey: pub,
	}
	if err := l.stg.SetTallyKey(election.ID, priv); err != nil {
		return nil, storageError(err, ErrElectionNotFound)
	}
	if err := l.stg.NewElection(election); err != nil {
		return nil, storageError(err, ErrElectionNotFound)
	}
	log.Infow("election created", "election", election.ID, "title", title)
	return election, nil
}

// Election returns an election by ID.
func (l *Ledger) Election(electionID string) (*types.Election, error) {
	election, err := l.stg.Election(electionID)
	if err != nil {
		return nil, storageError(err, ErrElectionNotFound.With(electionID))
	}
	return election, nil
}

// writableElection returns the election if it exists and is not finalized.
func (l *Ledger) writableElection(electionID string) (*types.Election, error) {
	election, err := l.Election(electionID)
	if err != nil {
		return nil, err
	}
	if election.Finalized {
		return nil, ErrElectionFinalized.With(electionID)
	}
	return election, nil
}

// AddCandidate appends a candidate to the ballot of an election. Candidates
// get consecutive indexes starting at 1, in the order they are added.
func (l *Ledger) AddCandidate(_ context.Context, electionID, name string, publicKey []byte) (*types.Candidate, error) {
	if _, err := l.writableElection(electionID); err != nil {
		return nil, err
	}
	candidate := &types.Candidate{
		ID:         uuid.NewString(),
		ElectionID: electionID,
		Name:       name,
		PublicKey:  publicKey,
	}
	if err := l.stg.AddCandidate(candidate); err != nil {
		return nil, storageError(err, ErrElectionNotFound.With(electionID))
	}
	return candidate, nil
}

// Candidates returns the ballot of an election ordered by index.
func (l *Ledger) Candidates(electionID string) ([]*types.Candidate, error) {
	candidates, err := l.stg.Candidates(electionID)
	if err != nil {
		return nil, storageError(err, ErrElectionNotFound.With(electionID))
	}
	return candidates, nil
}

// AddVoter adds a voter to the roll of an election. Only the hash of the
// access code is stored. When publicKey or walletAddress are set, votes are
// only accepted from the matching private key.
func (l *Ledger) AddVoter(_ context.Context, electionID, accessCode string, publicKey []byte, walletAddress *common.Address) (*types.Voter, error) {
	if _, err := l.writableElection(electionID); err != nil {
		return nil, err
	}
	if accessCode == "" {
		return nil, ErrInvalidArgument.With("empty access code")
	}
	if len(publicKey) > 0 {
		if err := schnorr.ParsePublicKey(publicKey); err != nil {
			return nil, ErrInvalidKeyFormat.WithErr(err)
		}
	}
	voter := &types.Voter{
		ID:             uuid.NewString(),
		ElectionID:     electionID,
		AccessCodeHash: hash.Sum([]byte(accessCode)),
		PublicKey:      publicKey,
		WalletAddress:  walletAddress,
	}
	if err := l.stg.AddVoter(voter); err != nil {
		return nil, storageError(err, ErrElectionNotFound.With(electionID))
	}
	return voter, nil
}

// VoterByAccessCode finds the voter of an election holding an access code.
func (l *Ledger) VoterByAccessCode(electionID, accessCode string) (*types.Voter, error) {
	voter, err := l.stg.VoterByAccessCode(electionID, hash.Sum([]byte(accessCode)))
	if err != nil {
		return nil, storageError(err, ErrVoterNotFound)
	}
	return voter, nil
}

// AddAuthority registers an active authority node with its x-only public
// key. Registering an existing ID replaces it.
func (l *Ledger) AddAuthority(_ context.Context, id string, publicKey []byte, weight uint64) (*types.AuthorityNode, error) {
	if err := schnorr.ParsePublicKey(publicKey); err != nil {
		return nil, ErrInvalidKeyFormat.WithErr(err)
	}
	node := &types.AuthorityNode{ID: id, PublicKey: publicKey, Active: true, Weight: weight}
	if err := l.stg.SetAuthority(node); err != nil {
		return nil, storageError(err, ErrNoActiveAuthority)
	}
	return node, nil
}

// DeactivateAuthority stops an authority from signing new blocks. Blocks it
// already signed stay valid.
func (l *Ledger) DeactivateAuthority(_ context.Context, id string) error {
	node, err := l.stg.Authority(id)
	if err != nil {
		return storageError(err, ErrNoActiveAuthority.With(id))
	}
	node.Active = false
	return storageError(l.stg.SetAuthority(node), ErrNoActiveAuthority)
}

// FinalizeElection closes an election. No more votes or blocks are accepted
// afterwards. Finalizing twice returns ErrElectionFinalized.
func (l *Ledger) FinalizeElection(_ context.Context, electionID string) (*types.Election, error) {
	election, err := l.stg.FinalizeElection(electionID, l.timestamp())
	if err != nil {
		return nil, storageError(err, ErrElectionNotFound.With(electionID))
	}
	log.Infow("election finalized", "election", electionID)
	return election, nil
}
