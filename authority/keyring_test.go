package authority

import (
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/election-ledger/crypto/schnorr"
)

func TestKeyring(t *testing.T) {
	c := qt.New(t)
	kr := NewKeyring()

	keys, err := kr.Generate("node-1")
	c.Assert(err, qt.IsNil)
	got, err := kr.SigningKey("node-1")
	c.Assert(err, qt.IsNil)
	c.Assert(got.PublicKey(), qt.DeepEquals, keys.PublicKey())

	_, err = kr.SigningKey("node-2")
	c.Assert(err, qt.ErrorIs, ErrUnknownAuthority)

	_, err = kr.AddHexKey("node-2", "abc")
	c.Assert(err, qt.ErrorIs, schnorr.ErrInvalidKeyFormat)
	c.Assert(kr.IDs(), qt.DeepEquals, []string{"node-1"})
}

func TestParseKeyring(t *testing.T) {
	c := qt.New(t)
	a, b := strings.Repeat("01", 32), "0x"+strings.Repeat("02", 32)

	kr, err := ParseKeyring("node-b=" + b + ", node-a=" + a + ",")
	c.Assert(err, qt.IsNil)
	c.Assert(kr.IDs(), qt.DeepEquals, []string{"node-a", "node-b"})

	empty, err := ParseKeyring("")
	c.Assert(err, qt.IsNil)
	c.Assert(empty.IDs(), qt.HasLen, 0)

	_, err = ParseKeyring("node-a")
	c.Assert(err, qt.IsNotNil)
	_, err = ParseKeyring("node-a=zz")
	c.Assert(err, qt.ErrorIs, schnorr.ErrInvalidKeyFormat)
}
