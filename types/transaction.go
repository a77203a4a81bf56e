package types

import "time"

// VoteTransaction is a private vote recorded in the ledger. It is pending
// while BlockNumber is nil and belongs to a block once it is set.
type VoteTransaction struct {
	Hash        HexBytes          `json:"hash"                  cbor:"0,keyasint,omitempty"`
	ElectionID  string            `json:"electionId"            cbor:"1,keyasint,omitempty"`
	Payload     HexBytes          `json:"payload"               cbor:"2,keyasint,omitempty"`
	Signature   HexBytes          `json:"signature"             cbor:"3,keyasint,omitempty"`
	PublicKey   HexBytes          `json:"publicKey"             cbor:"4,keyasint,omitempty"`
	Proof       HexBytes          `json:"proof"                 cbor:"5,keyasint,omitempty"`
	Commitment  HexBytes          `json:"commitment"            cbor:"6,keyasint,omitempty"`
	Nullifier   HexBytes          `json:"nullifier"             cbor:"7,keyasint,omitempty"`
	BlockNumber *uint64           `json:"blockNumber,omitempty" cbor:"8,keyasint,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"             cbor:"9,keyasint,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"        cbor:"10,keyasint,omitempty"`
}

// Pending reports whether the transaction is still waiting for a block.
func (tx *VoteTransaction) Pending() bool {
	return tx.BlockNumber == nil
}

// VotePayload is the plaintext of a sealed vote. Only the tally process,
// which holds the election tally key, can recover it.
type VotePayload struct {
	CandidateID    string `cbor:"0,keyasint,omitempty"`
	CandidateIndex uint32 `cbor:"1,keyasint,omitempty"`
	VoterID        string `cbor:"2,keyasint,omitempty"`
	Timestamp      int64  `cbor:"3,keyasint,omitempty"`
}
