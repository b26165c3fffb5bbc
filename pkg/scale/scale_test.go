package scale

import (
	"encoding/hex"
	"io"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompactEncoding(t *testing.T) {
	var testCases = []struct {
		val uint64
		enc string
	}{
		{0, "00"},
		{1, "04"},
		{42, "a8"},
		{63, "fc"},
		{64, "0101"},
		{69, "1501"},
		{16383, "fdff"},
		{16384, "02000100"},
		{65535, "feff0300"},
		{1<<30 - 1, "feffffff"},
		{1 << 30, "0300000040"},
		{100000000000000, "0b00407a10f35a"},
	}
	for _, tc := range testCases {
		w := NewBinWriter()
		w.WriteCompact(tc.val)
		require.NoError(t, w.Err)
		assert.Equal(t, tc.enc, hex.EncodeToString(w.Bytes()), tc.val)

		r := NewBinReaderFromBuf(w.Bytes())
		assert.Equal(t, tc.val, r.ReadCompact())
		require.NoError(t, r.Err)
		assert.Equal(t, 0, r.Len())
	}
}

func TestCompactBig(t *testing.T) {
	n := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	n.SubUint64(n, 1)

	w := NewBinWriter()
	w.WriteCompactBig(n)
	require.NoError(t, w.Err)
	buf := w.Bytes()
	require.Equal(t, 17, len(buf))
	assert.Equal(t, byte(0x33), buf[0])

	r := NewBinReaderFromBuf(buf)
	assert.Equal(t, n, r.ReadCompactBig())
	require.NoError(t, r.Err)

	r = NewBinReaderFromBuf(buf)
	r.ReadCompact()
	require.ErrorIs(t, r.Err, ErrCompactOverflow)
}

func TestFixedWidth(t *testing.T) {
	w := NewBinWriter()
	w.WriteB(7)
	w.WriteBool(true)
	w.WriteU16LE(0x0102)
	w.WriteU32LE(0x01020304)
	w.WriteU64LE(0x0102030405060708)
	w.WriteUintLE(uint256.NewInt(5), 16)
	w.WriteString("abc")
	require.NoError(t, w.Err)

	r := NewBinReaderFromBuf(w.Bytes())
	assert.Equal(t, byte(7), r.ReadB())
	assert.True(t, r.ReadBool())
	assert.Equal(t, uint16(0x0102), r.ReadU16LE())
	assert.Equal(t, uint32(0x01020304), r.ReadU32LE())
	assert.Equal(t, uint64(0x0102030405060708), r.ReadU64LE())
	assert.Equal(t, uint256.NewInt(5), r.ReadUintLE(16))
	assert.Equal(t, "abc", r.ReadString())
	require.NoError(t, r.Err)
	assert.Equal(t, 0, r.Len())
}

func TestReaderErrors(t *testing.T) {
	r := NewBinReaderFromBuf([]byte{1, 2})
	r.ReadU32LE()
	require.ErrorIs(t, r.Err, io.ErrUnexpectedEOF)
	// Sticky error, nothing is read afterwards.
	assert.Equal(t, byte(0), r.ReadB())

	r = NewBinReaderFromBuf([]byte{2})
	r.ReadBool()
	require.Error(t, r.Err)

	r = NewBinReaderFromBuf([]byte{0x10, 1})
	r.ReadVarBytes()
	require.ErrorIs(t, r.Err, io.ErrUnexpectedEOF)
}

func TestWriteUintOverflow(t *testing.T) {
	w := NewBinWriter()
	w.WriteUintLE(uint256.NewInt(256), 1)
	require.Error(t, w.Err)
	assert.Nil(t, w.Bytes())
}
