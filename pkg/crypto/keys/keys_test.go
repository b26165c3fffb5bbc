package keys

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aliceAddress = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	aliceHex     = "d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"
	bobAddress   = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"
	bobHex       = "8eaf04151687736326c9fea17e25fc5287613693c912909cb226aa4794f26a48"
)

func TestSS58(t *testing.T) {
	for addr, pub := range map[string]string{aliceAddress: aliceHex, bobAddress: bobHex} {
		id, prefix, err := DecodeAddress(addr)
		require.NoError(t, err)
		assert.Equal(t, DefaultSS58Prefix, prefix)
		assert.Equal(t, pub, hex.EncodeToString(id[:]))
		assert.Equal(t, addr, id.String())
	}

	id, err := ParseAccountID("0x" + aliceHex)
	require.NoError(t, err)
	assert.Equal(t, aliceAddress, id.String())
	assert.Equal(t, "0x"+aliceHex, id.Hex())

	t.Run("two-byte prefix", func(t *testing.T) {
		for _, prefix := range []uint16{64, 255, 1284, 16383} {
			addr := EncodeAddress(id, prefix)
			actual, actualPrefix, err := DecodeAddress(addr)
			require.NoError(t, err)
			assert.Equal(t, id, actual)
			assert.Equal(t, prefix, actualPrefix)
		}
	})
	t.Run("bad checksum", func(t *testing.T) {
		_, _, err := DecodeAddress(aliceAddress[:len(aliceAddress)-1] + "Z")
		require.Error(t, err)
	})
	t.Run("bad input", func(t *testing.T) {
		_, _, err := DecodeAddress("0OIl")
		require.Error(t, err)
		_, err = ParseAccountID("0x0102")
		require.Error(t, err)
	})
}

func TestSignVerify(t *testing.T) {
	p, err := NewPrivateKeyFromURI("//Alice")
	require.NoError(t, err)
	msg := []byte("sample")
	sig := p.Sign(msg)
	assert.Equal(t, Ecdsa, sig.Scheme)
	require.Equal(t, EcdsaSignatureLen, len(sig.Bytes))
	assert.True(t, Verify(p.PublicKey(), msg, sig))
	assert.False(t, Verify(p.PublicKey(), []byte("other"), sig))

	q, err := NewPrivateKeyFromURI("//Bob")
	require.NoError(t, err)
	assert.False(t, Verify(q.PublicKey(), msg, sig))
	assert.False(t, Verify(p.PublicKey(), msg, Signature{Scheme: Sr25519, Bytes: sig.Bytes}))
}

func TestDerivation(t *testing.T) {
	a1, err := NewPrivateKeyFromURI("//Alice")
	require.NoError(t, err)
	a2, err := NewPrivateKeyFromURI(DevSeed + "//Alice")
	require.NoError(t, err)
	assert.Equal(t, a1.Bytes(), a2.Bytes())
	assert.Equal(t, 33, len(a1.PublicKey()))

	b, err := NewPrivateKeyFromURI("//Bob")
	require.NoError(t, err)
	assert.NotEqual(t, a1.AccountID(), b.AccountID())

	nested, err := NewPrivateKeyFromURI("//Alice//stash")
	require.NoError(t, err)
	assert.NotEqual(t, a1.AccountID(), nested.AccountID())

	root, err := NewPrivateKeyFromURI("")
	require.NoError(t, err)
	assert.Equal(t, DevSeed[2:], hex.EncodeToString(root.Bytes()))

	// Manual derivation for the single hard junction.
	seed, _ := hex.DecodeString(DevSeed[2:])
	assert.Equal(t, deriveHard(seed, chainCode("Alice")), a1.Bytes())

	for _, bad := range []string{"/Alice", "//Alice/soft", "//Alice///pass", "bottom drive obey//Alice", "0x01//Alice", "//"} {
		_, err := NewPrivateKeyFromURI(bad)
		require.Error(t, err, bad)
	}
}

func TestChainCode(t *testing.T) {
	cc := chainCode("Alice")
	assert.Equal(t, byte(5<<2), cc[0])
	assert.Equal(t, []byte("Alice"), cc[1:6])
	assert.Equal(t, make([]byte, 26), cc[6:])

	cc = chainCode("1")
	assert.Equal(t, byte(1), cc[0])
	assert.Equal(t, make([]byte, 31), cc[1:])

	assert.Equal(t, 32, len(chainCode("a very long junction name that doesn't fit into a chain code")))
}

func TestKeyring(t *testing.T) {
	kr := NewKeyring()
	alice, err := kr.AddFromURI("//Alice")
	require.NoError(t, err)

	sig, pub, err := kr.Sign(alice, []byte("msg"))
	require.NoError(t, err)
	assert.True(t, Verify(pub, []byte("msg"), sig))

	_, _, err = kr.Sign(AccountID{}, []byte("msg"))
	require.ErrorIs(t, err, ErrUnknownAccount)

	_, err = kr.AddFromURI("//Alice/soft")
	require.ErrorIs(t, err, ErrSoftJunction)
}
