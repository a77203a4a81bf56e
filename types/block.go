package types

import "time"

// Block is a signed batch of vote transactions of one election. Block n>0
// links to block n-1 through PreviousHash.
type Block struct {
	ElectionID        string     `json:"electionId"        cbor:"0,keyasint,omitempty"`
	Number            uint64     `json:"number"            cbor:"1,keyasint"`
	PreviousHash      HexBytes   `json:"previousHash"      cbor:"2,keyasint,omitempty"`
	Hash              HexBytes   `json:"hash"              cbor:"3,keyasint,omitempty"`
	MerkleRoot        HexBytes   `json:"merkleRoot"        cbor:"4,keyasint,omitempty"`
	AuthorityID       string     `json:"authorityId"       cbor:"5,keyasint,omitempty"`
	Signature         HexBytes   `json:"signature"         cbor:"6,keyasint,omitempty"`
	TransactionCount  uint32     `json:"transactionCount"  cbor:"7,keyasint"`
	TransactionHashes []HexBytes `json:"transactionHashes" cbor:"8,keyasint,omitempty"`
	Timestamp         time.Time  `json:"timestamp"         cbor:"9,keyasint,omitempty"`
}

// Header returns the signed part of the block.
func (b *Block) Header() *BlockHeader {
	return &BlockHeader{
		ElectionID:       b.ElectionID,
		Number:           b.Number,
		PreviousHash:     b.PreviousHash,
		MerkleRoot:       b.MerkleRoot,
		TransactionCount: b.TransactionCount,
		Timestamp:        b.Timestamp.Unix(),
	}
}

// BlockHeader holds the fields covered by the authority signature.
type BlockHeader struct {
	ElectionID       string   `cbor:"0,keyasint"`
	Number           uint64   `cbor:"1,keyasint"`
	PreviousHash     HexBytes `cbor:"2,keyasint"`
	MerkleRoot       HexBytes `cbor:"3,keyasint"`
	TransactionCount uint32   `cbor:"4,keyasint"`
	Timestamp        int64    `cbor:"5,keyasint"`
}

// SealedBlock is the header plus its signer, the preimage of the block hash.
type SealedBlock struct {
	Header      *BlockHeader `cbor:"0,keyasint"`
	AuthorityID string       `cbor:"1,keyasint"`
	Signature   HexBytes     `cbor:"2,keyasint"`
}
