package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/vocdoni/election-ledger/types"
)

// Election retrieves an election. It returns ErrNotFound if it does not exist.
func (s *Storage) Election(electionID string) (*types.Election, error) {
	e := &types.Election{}
	if err := s.getArtifact(electionPrefix, electionKey(electionID), e); err != nil {
		return nil, err
	}
	return e, nil
}

// NewElection stores a new election. It returns ErrAlreadyExists if an
// election with the same ID exists.
func (s *Storage) NewElection(e *types.Election) error {
	if e == nil || e.ID == "" {
		return fmt.Errorf("nil election or empty id")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	exists, err := s.has(electionPrefix, electionKey(e.ID))
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyExists
	}
	return s.setArtifact(electionPrefix, electionKey(e.ID), e)
}

// ListElections returns the IDs of all the stored elections.
func (s *Storage) ListElections() ([]string, error) {
	var ids []string
	var decodeErr error
	if err := s.iterate(electionPrefix, nil, func(_, v []byte) bool {
		var e types.Election
		if err := decodeArtifact(v, &e); err != nil {
			decodeErr = err
			return false
		}
		ids = append(ids, e.ID)
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate elections: %w", err)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode election: %w", decodeErr)
	}
	sort.Strings(ids)
	return ids, nil
}

// FinalizeElection marks the election as finalized. It happens once, later
// calls return ErrElectionFinalized.
func (s *Storage) FinalizeElection(electionID string, at time.Time) (*types.Election, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	e, err := s.Election(electionID)
	if err != nil {
		return nil, err
	}
	if e.Finalized {
		return nil, ErrElectionFinalized
	}
	e.Finalized = true
	e.FinalizedAt = at
	if err := s.setArtifact(electionPrefix, electionKey(electionID), e); err != nil {
		return nil, err
	}
	return e, nil
}

// SetTallyKey stores the private key that opens the sealed payloads of an
// election. It is kept apart from the election record, which is public.
func (s *Storage) SetTallyKey(electionID string, privateKey []byte) error {
	return s.setArtifact(tallyKeyPrefix, electionKey(electionID), privateKey)
}

// TallyKey loads the tally private key of an election. Returns ErrNotFound if
// the key does not exist.
func (s *Storage) TallyKey(electionID string) ([]byte, error) {
	var key []byte
	if err := s.getArtifact(tallyKeyPrefix, electionKey(electionID), &key); err != nil {
		return nil, err
	}
	return key, nil
}

// AddCandidate stores a new candidate and assigns it the next index of its
// election, starting at types.MinCandidateIndex.
func (s *Storage) AddCandidate(c *types.Candidate) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("nil candidate or empty id")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	if _, err := s.Election(c.ElectionID); err != nil {
		return err
	}
	key := joinKey(electionKey(c.ElectionID), []byte(c.ID))
	exists, err := s.has(candidatePrefix, key)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyExists
	}
	candidates, err := s.Candidates(c.ElectionID)
	if err != nil {
		return err
	}
	c.Index = uint32(len(candidates)) + types.MinCandidateIndex
	return s.setArtifact(candidatePrefix, key, c)
}

// Candidate retrieves a candidate of an election.
func (s *Storage) Candidate(electionID, candidateID string) (*types.Candidate, error) {
	c := &types.Candidate{}
	if err := s.getArtifact(candidatePrefix, joinKey(electionKey(electionID), []byte(candidateID)), c); err != nil {
		return nil, err
	}
	return c, nil
}

// Candidates returns the candidates of an election sorted by index.
func (s *Storage) Candidates(electionID string) ([]*types.Candidate, error) {
	var list []*types.Candidate
	var decodeErr error
	if err := s.iterate(candidatePrefix, electionKey(electionID), func(_, v []byte) bool {
		c := &types.Candidate{}
		if err := decodeArtifact(v, c); err != nil {
			decodeErr = err
			return false
		}
		list = append(list, c)
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode candidate: %w", decodeErr)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Index < list[j].Index })
	return list, nil
}

// SetAuthority creates or replaces an authority node.
func (s *Storage) SetAuthority(a *types.AuthorityNode) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("nil authority or empty id")
	}
	return s.setArtifact(authorityPrefix, []byte(a.ID), a)
}

// Authority retrieves an authority node.
func (s *Storage) Authority(id string) (*types.AuthorityNode, error) {
	a := &types.AuthorityNode{}
	if err := s.getArtifact(authorityPrefix, []byte(id), a); err != nil {
		return nil, err
	}
	return a, nil
}

// Authorities returns every authority node sorted by ID.
func (s *Storage) Authorities() ([]*types.AuthorityNode, error) {
	var list []*types.AuthorityNode
	var decodeErr error
	if err := s.iterate(authorityPrefix, nil, func(_, v []byte) bool {
		a := &types.AuthorityNode{}
		if err := decodeArtifact(v, a); err != nil {
			decodeErr = err
			return false
		}
		list = append(list, a)
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate authorities: %w", err)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode authority: %w", decodeErr)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}
