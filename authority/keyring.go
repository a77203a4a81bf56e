// Package authority holds the signing keys of the authority nodes operated by
// this process. The public side of each authority lives in storage, the
// private keys only here.
package authority

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/vocdoni/election-ledger/crypto/schnorr"
)

// ErrUnknownAuthority is returned when there is no key for an authority.
var ErrUnknownAuthority = errors.New("unknown authority")

// Keyring maps authority IDs to their signing keys. It is safe for
// concurrent use.
type Keyring struct {
	mu   sync.RWMutex
	keys map[string]*schnorr.SignKeys
}

// NewKeyring returns an empty keyring.
func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[string]*schnorr.SignKeys)}
}

// ParseKeyring builds a keyring from a comma separated list of id=hexkey
// pairs, the format of the LEDGER_AUTHORITY_KEYS variable.
func ParseKeyring(list string) (*Keyring, error) {
	kr := NewKeyring()
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, key, ok := strings.Cut(entry, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("malformed authority key entry %q", id)
		}
		if _, err := kr.AddHexKey(id, key); err != nil {
			return nil, fmt.Errorf("authority %s: %w", id, err)
		}
	}
	return kr, nil
}

// Add stores the keys of an authority, replacing any previous ones.
func (kr *Keyring) Add(id string, keys *schnorr.SignKeys) {
	kr.mu.Lock()
	defer kr.mu.Unlock()
	kr.keys[id] = keys
}

// AddHexKey imports a hex encoded private key for an authority and returns
// the resulting keys.
func (kr *Keyring) AddHexKey(id, privHex string) (*schnorr.SignKeys, error) {
	keys := schnorr.NewSignKeys()
	if err := keys.AddHexKey(privHex); err != nil {
		return nil, err
	}
	kr.Add(id, keys)
	return keys, nil
}

// Generate creates a new key for an authority.
func (kr *Keyring) Generate(id string) (*schnorr.SignKeys, error) {
	keys := schnorr.NewSignKeys()
	if err := keys.Generate(); err != nil {
		return nil, err
	}
	kr.Add(id, keys)
	return keys, nil
}

// SigningKey returns the keys of an authority or ErrUnknownAuthority.
func (kr *Keyring) SigningKey(id string) (*schnorr.SignKeys, error) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	keys, ok := kr.keys[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAuthority, id)
	}
	return keys, nil
}

// IDs returns the authorities with a key, sorted.
func (kr *Keyring) IDs() []string {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	ids := make([]string, 0, len(kr.keys))
	for id := range kr.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
