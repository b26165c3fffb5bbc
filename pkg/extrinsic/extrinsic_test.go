package extrinsic

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/subgo/internal/testserdes"
	"github.com/nspcc-dev/subgo/pkg/chainrpc"
	"github.com/nspcc-dev/subgo/pkg/codec"
	"github.com/nspcc-dev/subgo/pkg/crypto/hash"
	"github.com/nspcc-dev/subgo/pkg/crypto/keys"
	"github.com/nspcc-dev/subgo/pkg/typereg"
	"github.com/nspcc-dev/subgo/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type keyPair struct {
	ring  *keys.Keyring
	alice keys.AccountID
	bob   keys.AccountID
}

func newKeys(t *testing.T) keyPair {
	ring := keys.NewKeyring()
	alice, err := ring.AddFromURI("//Alice")
	require.NoError(t, err)
	bob, err := ring.AddFromURI("//Bob")
	require.NoError(t, err)
	return keyPair{ring: ring, alice: alice, bob: bob}
}

func newCodec(t *testing.T) *codec.Registry {
	reg, err := codec.NewRegistry(nil, 0)
	require.NoError(t, err)
	return reg
}

func testAdditional() Additional {
	var genesis util.Hash
	genesis[0], genesis[31] = 0xaa, 0xbb
	return NewAdditional(genesis, chainrpc.RuntimeVersion{SpecVersion: 100, TransactionVersion: 1})
}

func TestTransferCall(t *testing.T) {
	k := newKeys(t)
	calls, err := NewRegistry()
	require.NoError(t, err)
	c, err := calls.Transfer(k.bob, 12345)
	require.NoError(t, err)
	assert.Equal(t, "Balances", c.Module)
	assert.Equal(t, Index{6, 0}, c.Index)

	b, err := c.Bytes(newCodec(t))
	require.NoError(t, err)
	// Index, MultiAddress::Id(bob), Compact(12345).
	assert.Equal(t, "0600"+"00"+hex.EncodeToString(k.bob[:])+"e5c0", hex.EncodeToString(b))

	bad, err := calls.Transfer(k.bob, "not a number")
	require.NoError(t, err)
	_, err = bad.Bytes(newCodec(t))
	require.Error(t, err)
	_, err = c.Bytes(brokenBalance(t))
	require.Error(t, err)

	_, err = calls.NewCall("Balances", "transfer", k.bob)
	require.Error(t, err)
	_, err = calls.NewCall("Balances", "burn", 1)
	require.ErrorIs(t, err, ErrUnknownCall)
}

// brokenBalance returns a registry with Balance that can't be compact.
func brokenBalance(t *testing.T) *codec.Registry {
	reg, err := codec.NewRegistry(typereg.Schema{"Balance": typereg.AliasOf("Text")}, 0)
	require.NoError(t, err)
	return reg
}

func TestCallRegistry(t *testing.T) {
	custom := CallDescriptor{
		Module:   "Balances",
		Function: "transfer",
		Index:    Index{0x05, 0x00},
		Params:   TransferDescriptor.Params,
	}
	calls, err := NewRegistry(custom, CallDescriptor{Module: "System", Function: "remark", Index: Index{0, 1}, Params: []Param{{Name: "remark", Type: "Bytes"}}})
	require.NoError(t, err)
	d, ok := calls.Descriptor("Balances", "transfer")
	require.True(t, ok)
	assert.Equal(t, Index{5, 0}, d.Index)
	require.Equal(t, 2, len(calls.Descriptors()))
	assert.Equal(t, "Balances", calls.Descriptors()[0].Module)

	_, err = NewRegistry(custom, custom)
	require.Error(t, err)
	_, err = NewRegistry(CallDescriptor{Function: "x"})
	require.Error(t, err)
}

func TestCallDescriptorYAML(t *testing.T) {
	var d CallDescriptor
	require.NoError(t, yaml.Unmarshal([]byte(`
module: Balances
function: transfer_keep_alive
index: "0x0603"
params:
  - name: dest
    type: Address
  - name: value
    type: Compact<Balance>
`), &d))
	assert.Equal(t, Index{6, 3}, d.Index)
	assert.Equal(t, "Compact<Balance>", d.Params[1].Type)

	out, err := yaml.Marshal(d)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(out), "index: \"0x0603\""), string(out))

	require.Error(t, yaml.Unmarshal([]byte("index: \"0x06\""), &d))
	require.Error(t, yaml.Unmarshal([]byte("index: zz"), &d))
}

func TestSignedExtrinsic(t *testing.T) {
	k := newKeys(t)
	reg := newCodec(t)
	calls, err := NewRegistry()
	require.NoError(t, err)
	c, err := calls.Transfer(k.bob, uint64(1_000_000_000_000))
	require.NoError(t, err)
	add := testAdditional()
	extra := SignedExtra{Nonce: 5}

	ext, err := Sign(reg, k.ring, k.alice, c, extra, add)
	require.NoError(t, err)
	b, err := ext.Bytes()
	require.NoError(t, err)

	callBytes, err := c.Bytes(reg)
	require.NoError(t, err)
	body := "84" + "00" + hex.EncodeToString(k.alice[:]) +
		"02" + hex.EncodeToString(ext.Signature.Bytes) +
		"00" + "14" + "00" + hex.EncodeToString(callBytes)
	// Two-byte compact length prefix.
	require.Equal(t, len(body)/2+2, len(b))
	assert.Equal(t, body, hex.EncodeToString(b[2:]))
	assert.Equal(t, hash.Blake2b256(b), ext.Hash())

	// Signature covers call, extra and additional data.
	payload := SigningPayload(callBytes, extra, add)
	assert.Equal(t, len(callBytes)+3+4+4+32+32, len(payload))
	_, pub, err := k.ring.Sign(k.alice, payload)
	require.NoError(t, err)
	assert.True(t, keys.Verify(pub, payload, ext.Signature))
	assert.False(t, keys.Verify(pub, SigningPayload(callBytes, SignedExtra{Nonce: 6}, add), ext.Signature))

	dec, err := Decode(reg, b)
	require.NoError(t, err)
	assert.Equal(t, k.alice, dec.Signer)
	assert.Equal(t, uint32(5), dec.Extra.Nonce)
	assert.Nil(t, dec.Extra.Tip)
	assert.Equal(t, callBytes, dec.Call)
	assert.Equal(t, ext.Signature, dec.Signature)
	assert.Equal(t, ext.Hash(), dec.Hash())
}

func TestSignUnknownAccount(t *testing.T) {
	k := newKeys(t)
	calls, err := NewRegistry()
	require.NoError(t, err)
	c, err := calls.Transfer(k.bob, 1)
	require.NoError(t, err)
	_, err = Sign(newCodec(t), keys.NewKeyring(), k.alice, c, SignedExtra{}, testAdditional())
	require.ErrorIs(t, err, keys.ErrUnknownAccount)
}

func TestTip(t *testing.T) {
	k := newKeys(t)
	reg := newCodec(t)
	calls, err := NewRegistry()
	require.NoError(t, err)
	c, err := calls.Transfer(k.bob, 1)
	require.NoError(t, err)
	ext, err := Sign(reg, k.ring, k.alice, c, SignedExtra{Nonce: 70000, Tip: uint256.NewInt(100)}, testAdditional())
	require.NoError(t, err)
	b, err := ext.Bytes()
	require.NoError(t, err)
	dec, err := Decode(reg, b)
	require.NoError(t, err)
	assert.Equal(t, uint32(70000), dec.Extra.Nonce)
	assert.Equal(t, uint256.NewInt(100), dec.Extra.Tip)
}

func TestSignedExtraSerialization(t *testing.T) {
	testserdes.EncodeDecodeBinary(t, &SignedExtra{Nonce: 5}, new(SignedExtra))
	testserdes.EncodeDecodeBinary(t, &SignedExtra{Nonce: 1 << 20, Tip: uint256.NewInt(1000)}, new(SignedExtra))

	data, err := testserdes.EncodeBinary(&SignedExtra{Nonce: 1, Tip: uint256.NewInt(1)})
	require.NoError(t, err)
	assert.Equal(t, "000404", hex.EncodeToString(data))

	// Mortal era.
	require.Error(t, testserdes.DecodeBinary([]byte{0x15, 0x01, 0x04, 0x00}, new(SignedExtra)))
}

func TestLongPayloadIsHashed(t *testing.T) {
	call := make([]byte, 300)
	add := testAdditional()
	p := SigningPayload(call, SignedExtra{}, add)
	require.Equal(t, 32, len(p))

	w := append([]byte{}, call...)
	w = append(w, 0, 0, 0)
	w = append(w, 100, 0, 0, 0, 1, 0, 0, 0)
	w = append(w, add.Genesis[:]...)
	w = append(w, add.BlockHash[:]...)
	h := hash.Blake2b256(w)
	assert.Equal(t, h[:], p)
}

func TestDecodeErrors(t *testing.T) {
	reg := newCodec(t)
	var testCases = map[string]string{
		"empty":     "",
		"unsigned":  "0c04" + "0600",
		"version":   "0c85" + "0600",
		"trailing":  "0484" + "00",
		"truncated": "1084" + "00" + "0102",
	}
	for name, data := range testCases {
		t.Run(name, func(t *testing.T) {
			b, err := hex.DecodeString(data)
			require.NoError(t, err)
			_, err = Decode(reg, b)
			require.Error(t, err)
		})
	}

	var e = &Extrinsic{Address: []byte{0}, Signature: keys.Signature{Scheme: keys.Ecdsa, Bytes: []byte{1}}}
	_, err := e.Bytes()
	require.Error(t, err)
	assert.Equal(t, util.Hash{}, e.Hash())
}
