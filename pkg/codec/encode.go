package codec

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/subgo/pkg/scale"
)

type encoder struct {
	r  *Registry
	bw *scale.BinWriter
}

func (e *encoder) fail(err error) {
	if e.bw.Err == nil {
		e.bw.Err = err
	}
}

func (e *encoder) encode(t *Type, v any, depth int) {
	if e.bw.Err != nil {
		return
	}
	if depth > maxDepth {
		e.fail(errTooDeep)
		return
	}
	t, err := e.r.resolve(t)
	if err != nil {
		e.fail(err)
		return
	}
	switch t.Kind {
	case KindNull:
		if !isNone(v) {
			e.fail(mismatch(t, v))
		}
	case KindBool:
		b, err := toBool(t, v)
		if err != nil {
			e.fail(err)
			return
		}
		e.bw.WriteBool(b)
	case KindUint:
		n, err := toUint(t, v)
		if err != nil {
			e.fail(err)
			return
		}
		e.bw.WriteUintLE(n, t.Size)
	case KindInt:
		n, err := toInt(t, v)
		if err != nil {
			e.fail(err)
			return
		}
		e.writeInt(n, t.Size)
	case KindText:
		s, err := toText(t, v)
		if err != nil {
			e.fail(err)
			return
		}
		e.bw.WriteString(s)
	case KindBytes:
		b, err := toBytes(t, v, 0)
		if err != nil {
			e.fail(err)
			return
		}
		e.bw.WriteVarBytes(b)
	case KindFixedBytes, KindHash:
		b, err := toBytes(t, v, t.Size)
		if err != nil {
			e.fail(err)
			return
		}
		e.bw.WriteBytes(b)
	case KindAccountID:
		a, err := toAccount(t, v)
		if err != nil {
			e.fail(err)
			return
		}
		e.bw.WriteBytes(a[:])
	case KindVec:
		l, err := toList(t, v)
		if err != nil {
			e.fail(err)
			return
		}
		e.bw.WriteCompact(uint64(len(l)))
		for _, item := range l {
			e.encode(t.Elem, item, depth+1)
		}
	case KindArray:
		l, err := toList(t, v)
		if err != nil {
			e.fail(err)
			return
		}
		if len(l) != t.Size {
			e.fail(fmt.Errorf("%w: %d elements for %s", ErrTypeMismatch, len(l), t))
			return
		}
		for _, item := range l {
			e.encode(t.Elem, item, depth+1)
		}
	case KindTuple:
		l, err := toList(t, v)
		if err != nil {
			e.fail(err)
			return
		}
		if len(l) != len(t.Elems) {
			e.fail(fmt.Errorf("%w: %d elements for %s", ErrTypeMismatch, len(l), t))
			return
		}
		for i, item := range l {
			e.encode(t.Elems[i], item, depth+1)
		}
	case KindOption:
		e.encodeOption(t, v, depth)
	case KindCompact:
		inner, err := e.r.resolve(t.Elem)
		if err != nil {
			e.fail(err)
			return
		}
		if inner.Kind != KindUint {
			e.fail(fmt.Errorf("%w: Compact<%s>", ErrUnsupported, inner))
			return
		}
		n, err := toUint(inner, v)
		if err != nil {
			e.fail(err)
			return
		}
		e.bw.WriteCompactBig(n)
	case KindStruct:
		fields, err := structFields(t, v)
		if err != nil {
			e.fail(err)
			return
		}
		for i, f := range t.Fields {
			e.encode(f.Type, fields[i], depth+1)
		}
	case KindEnum:
		idx, payload, err := enumVariant(t, v)
		if err != nil {
			e.fail(err)
			return
		}
		e.bw.WriteB(byte(idx))
		if vt := t.Variants[idx].Type; vt != nil {
			e.encode(vt, payload, depth+1)
		}
	default:
		e.fail(fmt.Errorf("%w: kind %d", ErrUnsupported, t.Kind))
	}
}

func (e *encoder) encodeOption(t *Type, v any, depth int) {
	inner, err := e.r.resolve(t.Elem)
	if err != nil {
		e.fail(err)
		return
	}
	if isNone(v) {
		e.bw.WriteB(0)
		return
	}
	if inner.Kind == KindBool {
		b, err := toBool(inner, v)
		if err != nil {
			e.fail(err)
			return
		}
		if b {
			e.bw.WriteB(1)
		} else {
			e.bw.WriteB(2)
		}
		return
	}
	e.bw.WriteB(1)
	e.encode(inner, v, depth+1)
}

// writeInt writes two's complement little-endian n.
func (e *encoder) writeInt(n *big.Int, size int) {
	u := new(big.Int).Set(n)
	if u.Sign() < 0 {
		u.Add(u, new(big.Int).Lsh(big.NewInt(1), uint(size*8)))
	}
	v, _ := uint256.FromBig(u)
	e.bw.WriteUintLE(v, size)
}
