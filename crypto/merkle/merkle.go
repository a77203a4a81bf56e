// Package merkle commits to an ordered list of transaction hashes. The tree
// is an arbo sparse Merkle tree using SHA-256, where each hash is stored
// under its position in the list, so the root depends on the order.
package merkle

import (
	"fmt"
	"math/big"

	"github.com/vocdoni/arbo"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/election-ledger/crypto/hash"
)

const (
	// maxLevels bounds the tree depth, and so the number of leaves.
	maxLevels = 64
	// keyLen is the byte length of the position keys.
	keyLen = maxLevels / 8
)

var hashFunc = arbo.HashFunctionSha256

// Root returns the Merkle root of the hashes in the given order. The root of
// an empty list is the digest of the empty sentinel.
func Root(hashes [][]byte) ([]byte, error) {
	if len(hashes) == 0 {
		return hash.Empty(), nil
	}
	tree, err := build(hashes)
	if err != nil {
		return nil, err
	}
	return tree.Root()
}

// Proof returns the packed siblings proving that hashes[index] is part of the
// root computed by Root(hashes).
func Proof(hashes [][]byte, index int) ([]byte, error) {
	if index < 0 || index >= len(hashes) {
		return nil, fmt.Errorf("leaf index %d out of range [0,%d)", index, len(hashes))
	}
	tree, err := build(hashes)
	if err != nil {
		return nil, err
	}
	_, _, siblings, existence, err := tree.GenProof(key(index))
	if err != nil {
		return nil, fmt.Errorf("generate proof: %w", err)
	}
	if !existence {
		return nil, fmt.Errorf("leaf %d not found in tree", index)
	}
	return siblings, nil
}

// Verify checks an inclusion proof produced by Proof.
func Verify(root []byte, index int, leaf, siblings []byte) bool {
	if index < 0 {
		return false
	}
	valid, err := arbo.CheckProof(hashFunc, key(index), leaf, root, siblings)
	if err != nil {
		return false
	}
	return valid
}

func build(hashes [][]byte) (*arbo.Tree, error) {
	tree, err := arbo.NewTree(arbo.Config{
		Database:     memdb.New(),
		MaxLevels:    maxLevels,
		HashFunction: hashFunc,
	})
	if err != nil {
		return nil, fmt.Errorf("create merkle tree: %w", err)
	}
	for i, h := range hashes {
		if len(h) != hash.Size {
			return nil, fmt.Errorf("leaf %d has %d bytes, expected %d", i, len(h), hash.Size)
		}
		if err := tree.Add(key(i), h); err != nil {
			return nil, fmt.Errorf("add leaf %d: %w", i, err)
		}
	}
	return tree, nil
}

func key(index int) []byte {
	return arbo.BigIntToBytes(keyLen, big.NewInt(int64(index)))
}
