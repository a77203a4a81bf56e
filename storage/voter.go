package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/vocdoni/election-ledger/types"
)

// reservation marks a voter whose vote is being built.
type reservation struct {
	Timestamp int64 `cbor:"0,keyasint"`
}

func voterKey(electionID, voterID string) []byte {
	return joinKey(electionKey(electionID), []byte(voterID))
}

// AddVoter stores a new voter of an existing election and indexes it by the
// hash of its access code. It returns ErrAlreadyExists if the voter ID or the
// access code hash are already in use in the election.
func (s *Storage) AddVoter(v *types.Voter) error {
	if v == nil || v.ID == "" {
		return fmt.Errorf("nil voter or empty id")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	if _, err := s.Election(v.ElectionID); err != nil {
		return err
	}
	key := voterKey(v.ElectionID, v.ID)
	exists, err := s.has(voterPrefix, key)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyExists
	}
	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if len(v.AccessCodeHash) > 0 {
		codeKey := joinKey(electionKey(v.ElectionID), v.AccessCodeHash)
		taken, err := s.has(voterCodePrefix, codeKey)
		if err != nil {
			return err
		}
		if taken {
			return ErrAlreadyExists
		}
		if err := setIn(wTx, voterCodePrefix, codeKey, v.ID); err != nil {
			return err
		}
	}
	if err := setIn(wTx, voterPrefix, key, v); err != nil {
		return err
	}
	return wTx.Commit()
}

// Voter retrieves a voter of an election.
func (s *Storage) Voter(electionID, voterID string) (*types.Voter, error) {
	v := &types.Voter{}
	if err := s.getArtifact(voterPrefix, voterKey(electionID, voterID), v); err != nil {
		return nil, err
	}
	return v, nil
}

// VoterByAccessCode finds a voter of an election by the hash of its access
// code.
func (s *Storage) VoterByAccessCode(electionID string, codeHash []byte) (*types.Voter, error) {
	var voterID string
	if err := s.getArtifact(voterCodePrefix, joinKey(electionKey(electionID), codeHash), &voterID); err != nil {
		return nil, err
	}
	return s.Voter(electionID, voterID)
}

// ReserveVoter takes the voting lock of a voter. Only one reservation per
// voter can be alive, a concurrent call gets ErrVoterReserved. A voter that
// already voted cannot be reserved (ErrVoterAlreadyVoted). Reservations
// expire after the reservation TTL.
func (s *Storage) ReserveVoter(electionID, voterID string) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	v, err := s.Voter(electionID, voterID)
	if err != nil {
		return err
	}
	if v.HasVoted {
		return ErrVoterAlreadyVoted
	}
	key := voterKey(electionID, voterID)
	reserved, err := s.isReserved(key)
	if err != nil {
		return err
	}
	if reserved {
		return ErrVoterReserved
	}
	return s.setArtifact(voterReservPrefix, key, &reservation{Timestamp: time.Now().UnixNano()})
}

// ReleaseVoter drops the voting lock of a voter. Releasing a voter that is not
// reserved is not an error.
func (s *Storage) ReleaseVoter(electionID, voterID string) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := deleteIn(wTx, voterReservPrefix, voterKey(electionID, voterID)); err != nil {
		return err
	}
	return wTx.Commit()
}

// IsVoterReserved reports whether the voter has a live reservation.
func (s *Storage) IsVoterReserved(electionID, voterID string) (bool, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	return s.isReserved(voterKey(electionID, voterID))
}

// isReserved must be called with the global lock held.
func (s *Storage) isReserved(key []byte) (bool, error) {
	r := &reservation{}
	if err := s.getArtifact(voterReservPrefix, key, r); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return time.Since(time.Unix(0, r.Timestamp)) < s.reservationTTL, nil
}
