package codec

import (
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/nspcc-dev/subgo/pkg/crypto/keys"
	"github.com/nspcc-dev/subgo/pkg/scale"
	"github.com/nspcc-dev/subgo/pkg/util"
)

// maxDepth limits type nesting when decoding and encoding.
const maxDepth = 128

var errTooDeep = errors.New("type nesting is too deep")

type decoder struct {
	r  *Registry
	br *scale.BinReader
}

func (d *decoder) fail(err error) Value {
	if d.br.Err == nil {
		d.br.Err = err
	}
	return nil
}

func (d *decoder) decode(t *Type, depth int) Value {
	if d.br.Err != nil {
		return nil
	}
	if depth > maxDepth {
		return d.fail(errTooDeep)
	}
	t, err := d.r.resolve(t)
	if err != nil {
		return d.fail(err)
	}
	switch t.Kind {
	case KindNull:
		return nil
	case KindBool:
		return d.br.ReadBool()
	case KindUint:
		return readUint(d.br, t.Size)
	case KindInt:
		return readInt(d.br, t.Size)
	case KindText:
		b := d.br.ReadVarBytes()
		if d.br.Err == nil && !utf8.Valid(b) {
			return d.fail(errors.New("invalid UTF-8 string"))
		}
		return string(b)
	case KindBytes:
		return d.br.ReadVarBytes()
	case KindFixedBytes:
		b := make([]byte, t.Size)
		d.br.ReadBytes(b)
		return b
	case KindHash:
		var h util.Hash
		d.br.ReadBytes(h[:])
		return h
	case KindAccountID:
		var a keys.AccountID
		d.br.ReadBytes(a[:])
		return a
	case KindVec:
		n := d.br.ReadLength()
		capacity := n
		if capacity > d.br.Len() {
			capacity = d.br.Len()
		}
		res := make([]Value, 0, capacity)
		for i := 0; i < n && d.br.Err == nil; i++ {
			res = append(res, d.decode(t.Elem, depth+1))
		}
		return res
	case KindArray:
		res := make([]Value, 0, t.Size)
		for i := 0; i < t.Size && d.br.Err == nil; i++ {
			res = append(res, d.decode(t.Elem, depth+1))
		}
		return res
	case KindTuple:
		res := make([]Value, 0, len(t.Elems))
		for _, e := range t.Elems {
			res = append(res, d.decode(e, depth+1))
		}
		return res
	case KindOption:
		return d.decodeOption(t, depth)
	case KindCompact:
		return d.decodeCompact(t)
	case KindStruct:
		s := &Struct{Fields: make([]Field, 0, len(t.Fields))}
		for _, f := range t.Fields {
			s.Fields = append(s.Fields, Field{Name: f.Name, Value: d.decode(f.Type, depth+1)})
		}
		return s
	case KindEnum:
		idx := d.br.ReadB()
		if d.br.Err != nil {
			return nil
		}
		if int(idx) >= len(t.Variants) {
			return d.fail(fmt.Errorf("invalid enum index %d (%d variants)", idx, len(t.Variants)))
		}
		v := t.Variants[idx]
		e := &Enum{Variant: v.Name, Index: idx}
		if v.Type != nil {
			e.Value = d.decode(v.Type, depth+1)
		}
		return e
	}
	return d.fail(fmt.Errorf("%w: kind %d", ErrUnsupported, t.Kind))
}

func (d *decoder) decodeOption(t *Type, depth int) Value {
	inner, err := d.r.resolve(t.Elem)
	if err != nil {
		return d.fail(err)
	}
	flag := d.br.ReadB()
	if d.br.Err != nil {
		return nil
	}
	if inner.Kind == KindBool {
		switch flag {
		case 0:
			return None{}
		case 1:
			return true
		case 2:
			return false
		}
		return d.fail(fmt.Errorf("invalid Option<bool> byte %#x", flag))
	}
	switch flag {
	case 0:
		return None{}
	case 1:
		return d.decode(inner, depth+1)
	}
	return d.fail(fmt.Errorf("invalid option flag %#x", flag))
}

func (d *decoder) decodeCompact(t *Type) Value {
	inner, err := d.r.resolve(t.Elem)
	if err != nil {
		return d.fail(err)
	}
	if inner.Kind != KindUint {
		return d.fail(fmt.Errorf("%w: Compact<%s>", ErrUnsupported, inner))
	}
	n := d.br.ReadCompactBig()
	if d.br.Err != nil {
		return nil
	}
	if n.BitLen() > inner.Size*8 {
		return d.fail(fmt.Errorf("%w: %s", scale.ErrCompactOverflow, inner))
	}
	if inner.Size <= 8 {
		return n.Uint64()
	}
	return n
}

func readUint(br *scale.BinReader, size int) Value {
	switch size {
	case 1:
		return uint64(br.ReadB())
	case 2:
		return uint64(br.ReadU16LE())
	case 4:
		return uint64(br.ReadU32LE())
	case 8:
		return br.ReadU64LE()
	}
	return br.ReadUintLE(size)
}

func readInt(br *scale.BinReader, size int) Value {
	if size <= 8 {
		u := readUint(br, size).(uint64)
		shift := 64 - 8*size
		return int64(u<<shift) >> shift
	}
	n := br.ReadUintLE(size).ToBig()
	if n.Bit(size*8-1) == 1 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(size*8)))
	}
	return n
}
