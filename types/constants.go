package types

const (
	// HashSize is the size in bytes of every digest in the ledger.
	HashSize = 32
	// GenesisBlockNumber is the number of the first block of every election.
	GenesisBlockNumber = uint64(0)
	// MinCandidateIndex is the lowest valid candidate index. Candidate
	// indexes are contiguous from here up to the number of candidates.
	MinCandidateIndex = 1
)

// ZeroHash returns the previous hash of every genesis block.
func ZeroHash() HexBytes {
	return make(HexBytes, HashSize)
}
