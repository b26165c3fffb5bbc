package scale

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
)

// BinWriter is a convenient wrapper around a byte buffer and err object.
// Used to simplify error handling when writing a value with many fields.
type BinWriter struct {
	buf bytes.Buffer
	Err error
	uv  [8]byte
}

// NewBinWriter makes an empty BinWriter.
func NewBinWriter() *BinWriter {
	return new(BinWriter)
}

// Bytes returns the data written so far, or nil if an error occurred.
func (w *BinWriter) Bytes() []byte {
	if w.Err != nil {
		return nil
	}
	return w.buf.Bytes()
}

// WriteBytes writes b as is.
func (w *BinWriter) WriteBytes(b []byte) {
	if w.Err != nil {
		return
	}
	w.buf.Write(b)
}

// WriteB writes a single byte.
func (w *BinWriter) WriteB(u8 byte) {
	w.uv[0] = u8
	w.WriteBytes(w.uv[:1])
}

// WriteBool writes a boolean value encoded as a byte with values of 0 or 1.
func (w *BinWriter) WriteBool(b bool) {
	var i byte
	if b {
		i = 1
	}
	w.WriteB(i)
}

// WriteU16LE writes a uint16 value in little-endian format.
func (w *BinWriter) WriteU16LE(u16 uint16) {
	binary.LittleEndian.PutUint16(w.uv[:2], u16)
	w.WriteBytes(w.uv[:2])
}

// WriteU32LE writes a uint32 value in little-endian format.
func (w *BinWriter) WriteU32LE(u32 uint32) {
	binary.LittleEndian.PutUint32(w.uv[:4], u32)
	w.WriteBytes(w.uv[:4])
}

// WriteU64LE writes a uint64 value in little-endian format.
func (w *BinWriter) WriteU64LE(u64 uint64) {
	binary.LittleEndian.PutUint64(w.uv[:8], u64)
	w.WriteBytes(w.uv[:8])
}

// WriteUintLE writes n as a little-endian unsigned integer of the given byte
// width, n must fit into it.
func (w *BinWriter) WriteUintLE(n *uint256.Int, width int) {
	if w.Err != nil {
		return
	}
	if width <= 0 || width > 32 {
		w.Err = fmt.Errorf("unsupported integer width %d", width)
		return
	}
	if n.BitLen() > width*8 {
		w.Err = fmt.Errorf("value %s doesn't fit into %d bytes", n.ToBig(), width)
		return
	}
	be := n.Bytes32()
	w.WriteBytes(reverse(be[32-width:]))
}

// WriteCompact writes a compact-encoded unsigned integer.
func (w *BinWriter) WriteCompact(v uint64) {
	switch {
	case v < 1<<6:
		w.WriteB(byte(v) << 2)
	case v < 1<<14:
		w.WriteU16LE(uint16(v)<<2 | 0b01)
	case v < 1<<30:
		w.WriteU32LE(uint32(v)<<2 | 0b10)
	default:
		w.WriteCompactBig(uint256.NewInt(v))
	}
}

// WriteCompactBig writes a compact-encoded unsigned integer of any size.
func (w *BinWriter) WriteCompactBig(n *uint256.Int) {
	if n.IsUint64() && n.Uint64() < 1<<30 {
		w.WriteCompact(n.Uint64())
		return
	}
	width := (n.BitLen() + 7) / 8
	if width < 4 {
		width = 4
	}
	w.WriteB(byte(width-4)<<2 | 0b11)
	w.WriteUintLE(n, width)
}

// WriteVarBytes writes a compact length prefix followed by b.
func (w *BinWriter) WriteVarBytes(b []byte) {
	w.WriteCompact(uint64(len(b)))
	w.WriteBytes(b)
}

// WriteString writes a string as length-prefixed bytes.
func (w *BinWriter) WriteString(s string) {
	w.WriteVarBytes([]byte(s))
}
