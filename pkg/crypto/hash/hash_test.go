package hash

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aliceHex = "d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"

func TestTwox128(t *testing.T) {
	assert.Equal(t, "26aa394eea5630e07c48ae0c9558cef7", hex.EncodeToString(Twox128([]byte("System"))))
	assert.Equal(t, "b99d880ec681799c0cf30e8886371da9", hex.EncodeToString(Twox128([]byte("Account"))))
	assert.Equal(t, 8, len(Twox64([]byte("x"))))
	assert.Equal(t, 32, len(Twox256([]byte("x"))))
	assert.Equal(t, Twox128([]byte("x")), Twox256([]byte("x"))[:16])
}

func TestBlake2(t *testing.T) {
	assert.Equal(t, 16, len(Blake2b128(nil)))
	assert.Equal(t, 64, len(Blake2b512(nil)))
	// Well-known blake2b-256 digest of the empty input.
	assert.Equal(t, "0x0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8", Blake2b256(nil).String())
}

func TestHasherConcat(t *testing.T) {
	alice, err := hex.DecodeString(aliceHex)
	require.NoError(t, err)

	h, err := Blake2_128Concat.Hash(alice)
	require.NoError(t, err)
	assert.Equal(t, "de1e86a9a8c739864cf3cc5ec2bea59f"+aliceHex, hex.EncodeToString(h))

	h, err = Twox64Concat.Hash(alice)
	require.NoError(t, err)
	assert.Equal(t, 8+32, len(h))
	assert.Equal(t, alice, h[8:])

	h, err = Identity.Hash(alice)
	require.NoError(t, err)
	assert.Equal(t, alice, h)

	_, err = Hasher(100).Hash(alice)
	require.Error(t, err)
}

func TestParseHasher(t *testing.T) {
	for h, name := range hasherNames {
		actual, err := ParseHasher(name)
		require.NoError(t, err)
		assert.Equal(t, h, actual)
		assert.Equal(t, name, h.String())
	}
	_, err := ParseHasher("Sha3")
	require.Error(t, err)
	assert.Equal(t, "Hasher(100)", Hasher(100).String())
}
