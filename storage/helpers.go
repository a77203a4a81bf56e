package storage

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var encMode cbor.EncMode

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
}

// Artifact encoding/decoding
func encodeArtifact(a any) ([]byte, error) {
	return encMode.Marshal(a)
}

func decodeArtifact(data []byte, out any) error {
	return cbor.Unmarshal(data, out)
}

func hashKey(data []byte) []byte {
	hash := sha256.Sum256(data)
	return hash[:maxKeySize]
}

// electionKey is the fixed size key component of an election, so records of
// one election can be iterated by prefix.
func electionKey(electionID string) []byte {
	return hashKey([]byte(electionID))
}

func joinKey(parts ...[]byte) []byte {
	var key []byte
	for _, p := range parts {
		key = append(key, p...)
	}
	return key
}

func uint64Key(n uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, n)
}

// getArtifact reads and decodes the artifact stored at prefix+key. It returns
// ErrNotFound if the key does not exist.
func (s *Storage) getArtifact(prefix, key []byte, out any) error {
	data, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get artifact: %w", err)
	}
	if err := decodeArtifact(data, out); err != nil {
		return fmt.Errorf("decode artifact: %w", err)
	}
	return nil
}

// has reports whether prefix+key exists.
func (s *Storage) has(prefix, key []byte) (bool, error) {
	if _, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// setArtifact encodes and stores a single artifact in its own transaction.
func (s *Storage) setArtifact(prefix, key []byte, artifact any) error {
	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := setIn(wTx, prefix, key, artifact); err != nil {
		return err
	}
	return wTx.Commit()
}

// setIn encodes an artifact and adds it to a larger write transaction.
func setIn(wTx db.WriteTx, prefix, key []byte, artifact any) error {
	data, err := encodeArtifact(artifact)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := prefixeddb.NewPrefixedWriteTx(wTx, prefix).Set(key, data); err != nil {
		return fmt.Errorf("set artifact: %w", err)
	}
	return nil
}

func deleteIn(wTx db.WriteTx, prefix, key []byte) error {
	if err := prefixeddb.NewPrefixedWriteTx(wTx, prefix).Delete(key); err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

// iterate walks all the values under prefix+sub in key order. The key passed
// to fn has prefix+sub removed. Keys and values are copied, fn can keep them.
func (s *Storage) iterate(prefix, sub []byte, fn func(k, v []byte) bool) error {
	rd := prefixeddb.NewPrefixedReader(s.db, prefix)
	return rd.Iterate(sub, func(k, v []byte) bool {
		return fn(append([]byte(nil), k...), append([]byte(nil), v...))
	})
}
