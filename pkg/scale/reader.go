/*
Package scale implements low-level SCALE binary encoding primitives used by
Substrate-based chains: little-endian fixed width integers, compact integers
and length-prefixed byte strings.
*/
package scale

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/holiman/uint256"
)

// MaxArraySize is the maximum number of elements (or bytes) a length prefix is
// allowed to announce.
const MaxArraySize = 0x1000000

// ErrCompactOverflow is returned when a compact integer doesn't fit into the
// requested type.
var ErrCompactOverflow = errors.New("compact integer overflow")

// BinReader is a convenient wrapper around a byte buffer and err object.
// Used to simplify error handling when reading into a value with many fields,
// once Err is set all subsequent reads are no-ops.
type BinReader struct {
	buf []byte
	off int
	Err error
}

// NewBinReaderFromBuf makes a BinReader from byte buffer.
func NewBinReaderFromBuf(b []byte) *BinReader {
	return &BinReader{buf: b}
}

// Len returns the number of unread bytes.
func (r *BinReader) Len() int {
	return len(r.buf) - r.off
}

// ReadBytes reads exactly len(b) bytes into b.
func (r *BinReader) ReadBytes(b []byte) {
	if r.Err != nil {
		return
	}
	if r.Len() < len(b) {
		r.Err = io.ErrUnexpectedEOF
		return
	}
	copy(b, r.buf[r.off:])
	r.off += len(b)
}

// ReadB reads a single byte.
func (r *BinReader) ReadB() byte {
	var b [1]byte
	r.ReadBytes(b[:])
	return b[0]
}

// ReadBool reads a boolean encoded as a byte with values of 0 or 1, any other
// value is an error.
func (r *BinReader) ReadBool() bool {
	b := r.ReadB()
	if r.Err == nil && b > 1 {
		r.Err = fmt.Errorf("invalid boolean byte %#x", b)
	}
	return b == 1
}

// ReadU16LE reads a little-endian encoded uint16.
func (r *BinReader) ReadU16LE() uint16 {
	var b [2]byte
	r.ReadBytes(b[:])
	return binary.LittleEndian.Uint16(b[:])
}

// ReadU32LE reads a little-endian encoded uint32.
func (r *BinReader) ReadU32LE() uint32 {
	var b [4]byte
	r.ReadBytes(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

// ReadU64LE reads a little-endian encoded uint64.
func (r *BinReader) ReadU64LE() uint64 {
	var b [8]byte
	r.ReadBytes(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

// ReadUintLE reads a little-endian unsigned integer of the given byte width
// (up to 32 bytes) into a uint256.Int.
func (r *BinReader) ReadUintLE(width int) *uint256.Int {
	if width <= 0 || width > 32 {
		if r.Err == nil {
			r.Err = fmt.Errorf("unsupported integer width %d", width)
		}
		return new(uint256.Int)
	}
	b := make([]byte, width)
	r.ReadBytes(b)
	return new(uint256.Int).SetBytes(reverse(b))
}

// ReadCompact reads a compact-encoded integer that must fit into uint64.
func (r *BinReader) ReadCompact() uint64 {
	n := r.ReadCompactBig()
	if r.Err != nil {
		return 0
	}
	if !n.IsUint64() {
		r.Err = ErrCompactOverflow
		return 0
	}
	return n.Uint64()
}

// ReadCompactBig reads a compact-encoded integer of any supported size.
func (r *BinReader) ReadCompactBig() *uint256.Int {
	b := r.ReadB()
	if r.Err != nil {
		return new(uint256.Int)
	}
	switch b & 0b11 {
	case 0b00:
		return uint256.NewInt(uint64(b >> 2))
	case 0b01:
		next := r.ReadB()
		return uint256.NewInt(uint64(b)>>2 | uint64(next)<<6)
	case 0b10:
		rest := make([]byte, 3)
		r.ReadBytes(rest)
		v := uint64(b) | uint64(rest[0])<<8 | uint64(rest[1])<<16 | uint64(rest[2])<<24
		return uint256.NewInt(v >> 2)
	default:
		width := int(b>>2) + 4
		if width > 32 {
			r.Err = ErrCompactOverflow
			return new(uint256.Int)
		}
		return r.ReadUintLE(width)
	}
}

// ReadLength reads a compact length prefix and checks it against
// MaxArraySize.
func (r *BinReader) ReadLength() int {
	n := r.ReadCompact()
	if r.Err != nil {
		return 0
	}
	if n > MaxArraySize {
		r.Err = fmt.Errorf("array is too big (%d)", n)
		return 0
	}
	return int(n)
}

// ReadVarBytes reads a compact length prefix followed by that many bytes.
func (r *BinReader) ReadVarBytes() []byte {
	n := r.ReadLength()
	if r.Err != nil {
		return nil
	}
	if n > r.Len() {
		r.Err = io.ErrUnexpectedEOF
		return nil
	}
	b := make([]byte, n)
	r.ReadBytes(b)
	return b
}

// ReadString calls ReadVarBytes and casts the results as a string.
func (r *BinReader) ReadString() string {
	return string(r.ReadVarBytes())
}

func reverse(b []byte) []byte {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b
}
