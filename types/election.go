package types

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Election is the root of an election ledger. It owns its candidates, voters
// and blocks.
type Election struct {
	ID             string    `json:"id"                    cbor:"0,keyasint,omitempty"`
	Title          string    `json:"title"                 cbor:"1,keyasint,omitempty"`
	OpenAt         time.Time `json:"openAt"                cbor:"2,keyasint,omitempty"`
	CloseAt        time.Time `json:"closeAt"               cbor:"3,keyasint,omitempty"`
	GenesisHash    HexBytes  `json:"genesisHash,omitempty" cbor:"4,keyasint,omitempty"`
	Finalized      bool      `json:"finalized"             cbor:"5,keyasint,omitempty"`
	FinalizedAt    time.Time `json:"finalizedAt,omitempty" cbor:"6,keyasint,omitempty"`
	TallyPublicKey HexBytes  `json:"tallyPublicKey"        cbor:"7,keyasint,omitempty"`
}

// IsOpen reports whether t falls inside the voting window. A zero CloseAt
// means the window has no end.
func (e *Election) IsOpen(t time.Time) bool {
	if !e.OpenAt.IsZero() && t.Before(e.OpenAt) {
		return false
	}
	if !e.CloseAt.IsZero() && !t.Before(e.CloseAt) {
		return false
	}
	return true
}

func (e *Election) String() string {
	data, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	return string(data)
}

// AuthorityNode is a permissioned block signer.
type AuthorityNode struct {
	ID        string   `json:"id"        cbor:"0,keyasint,omitempty"`
	PublicKey HexBytes `json:"publicKey" cbor:"1,keyasint,omitempty"`
	Active    bool     `json:"active"    cbor:"2,keyasint,omitempty"`
	Weight    uint64   `json:"weight"    cbor:"3,keyasint,omitempty"`
}

// Candidate is a choice of an election. Index is stable and contiguous
// starting at MinCandidateIndex.
type Candidate struct {
	ID         string   `json:"id"                  cbor:"0,keyasint,omitempty"`
	ElectionID string   `json:"electionId"          cbor:"1,keyasint,omitempty"`
	Name       string   `json:"name"                cbor:"2,keyasint,omitempty"`
	PublicKey  HexBytes `json:"publicKey,omitempty" cbor:"3,keyasint,omitempty"`
	Index      uint32   `json:"index"               cbor:"4,keyasint,omitempty"`
}

// Voter is an entry of the voter roll. The access code is only kept as its
// hash. HasVoted flips exactly once, in the same write that records the
// voter's transaction.
type Voter struct {
	ID             string          `json:"id"                      cbor:"0,keyasint,omitempty"`
	ElectionID     string          `json:"electionId"              cbor:"1,keyasint,omitempty"`
	AccessCodeHash HexBytes        `json:"-"                       cbor:"2,keyasint,omitempty"`
	PublicKey      HexBytes        `json:"publicKey,omitempty"     cbor:"3,keyasint,omitempty"`
	WalletAddress  *common.Address `json:"walletAddress,omitempty" cbor:"4,keyasint,omitempty"`
	HasVoted       bool            `json:"hasVoted"                cbor:"5,keyasint,omitempty"`
	Nullifier      HexBytes        `json:"nullifier,omitempty"     cbor:"6,keyasint,omitempty"`
}
