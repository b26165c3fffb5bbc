package codec

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/subgo/pkg/crypto/keys"
	"github.com/nspcc-dev/subgo/pkg/scale"
	"github.com/nspcc-dev/subgo/pkg/util"
)

// DecodeJSON decodes a JSON-RPC result of the given type. Nodes serialize
// most values as JSON, but opaque codec types (like storage data or Bytes
// results) come as 0x-prefixed hex SCALE which is decoded as such.
func (r *Registry) DecodeJSON(expr string, data []byte) (Value, error) {
	t, err := r.Type(expr)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("can't decode %s: %w", expr, err)
	}
	v, err := r.fromJSON(t, raw, 0)
	if err != nil {
		return nil, fmt.Errorf("can't decode %s: %w", expr, err)
	}
	return v, nil
}

func (r *Registry) fromJSON(t *Type, raw any, depth int) (Value, error) {
	if depth > maxDepth {
		return nil, errTooDeep
	}
	t, err := r.resolve(t)
	if err != nil {
		return nil, err
	}
	if s, ok := raw.(string); ok && strings.HasPrefix(s, "0x") && isComposite(t, s) {
		b, err := util.DecodeHex(s)
		if err != nil {
			return nil, err
		}
		return r.scaleValue(t, b)
	}
	switch t.Kind {
	case KindNull:
		return nil, nil
	case KindBool:
		return toBool(t, raw)
	case KindUint:
		n, err := toUint(t, raw)
		if err != nil {
			return nil, err
		}
		if t.Size <= 8 {
			return n.Uint64(), nil
		}
		return n, nil
	case KindInt:
		n, err := toInt(t, raw)
		if err != nil {
			return nil, err
		}
		if t.Size <= 8 {
			return n.Int64(), nil
		}
		return n, nil
	case KindText:
		s, ok := raw.(string)
		if !ok {
			return nil, mismatch(t, raw)
		}
		return s, nil
	case KindBytes:
		s, ok := raw.(string)
		if !ok {
			return nil, mismatch(t, raw)
		}
		return util.DecodeHex(s)
	case KindFixedBytes:
		return jsonHex(t, raw)
	case KindHash:
		b, err := jsonHex(t, raw)
		if err != nil {
			return nil, err
		}
		var h util.Hash
		copy(h[:], b)
		return h, nil
	case KindAccountID:
		return toAccount(t, raw)
	case KindVec, KindArray, KindTuple:
		l, ok := raw.([]any)
		if !ok {
			return nil, mismatch(t, raw)
		}
		if t.Kind == KindArray && len(l) != t.Size || t.Kind == KindTuple && len(l) != len(t.Elems) {
			return nil, fmt.Errorf("%w: %d elements for %s", ErrTypeMismatch, len(l), t)
		}
		res := make([]Value, len(l))
		for i := range l {
			et := t.Elem
			if t.Kind == KindTuple {
				et = t.Elems[i]
			}
			res[i], err = r.fromJSON(et, l[i], depth+1)
			if err != nil {
				return nil, err
			}
		}
		return res, nil
	case KindOption:
		if raw == nil {
			return None{}, nil
		}
		return r.fromJSON(t.Elem, raw, depth+1)
	case KindCompact:
		return r.fromJSON(t.Elem, raw, depth+1)
	case KindStruct:
		return r.structFromJSON(t, raw, depth)
	case KindEnum:
		return r.enumFromJSON(t, raw, depth)
	}
	return nil, fmt.Errorf("%w: kind %d", ErrUnsupported, t.Kind)
}

// isComposite returns true for types that have no natural JSON string form,
// so a hex string for them is SCALE. Enum hex string may still be a variant
// name or a payload for the first variant.
func isComposite(t *Type, s string) bool {
	switch t.Kind {
	case KindVec, KindArray, KindTuple, KindStruct:
		return true
	case KindEnum:
		return findVariant(t, s) < 0 && t.Variants[0].Type == nil
	}
	return false
}

func (r *Registry) scaleValue(t *Type, b []byte) (Value, error) {
	v, err := r.decodeAll(t, b)
	if err != nil {
		return nil, fmt.Errorf("hex SCALE value: %w", err)
	}
	return v, nil
}

func (r *Registry) decodeAll(t *Type, b []byte) (Value, error) {
	br := scale.NewBinReaderFromBuf(b)
	v := r.DecodeFrom(br, t)
	if br.Err != nil {
		return nil, br.Err
	}
	if br.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", br.Len())
	}
	return v, nil
}

func jsonHex(t *Type, raw any) ([]byte, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, mismatch(t, raw)
	}
	return toBytes(t, s, t.Size)
}

func (r *Registry) structFromJSON(t *Type, raw any, depth int) (Value, error) {
	s := &Struct{Fields: make([]Field, 0, len(t.Fields))}
	switch raw := raw.(type) {
	case map[string]any:
		for _, f := range t.Fields {
			fr, ok := lookupField(raw, f.Name)
			if !ok {
				ft, err := r.resolve(f.Type)
				if err != nil || ft.Kind != KindOption {
					return nil, fmt.Errorf("%w: missing field %s", ErrTypeMismatch, f.Name)
				}
			}
			v, err := r.fromJSON(f.Type, fr, depth+1)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			s.Fields = append(s.Fields, Field{Name: f.Name, Value: v})
		}
	case []any:
		if len(raw) != len(t.Fields) {
			return nil, fmt.Errorf("%w: %d values for %d fields", ErrTypeMismatch, len(raw), len(t.Fields))
		}
		for i, f := range t.Fields {
			v, err := r.fromJSON(f.Type, raw[i], depth+1)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			s.Fields = append(s.Fields, Field{Name: f.Name, Value: v})
		}
	default:
		return nil, mismatch(t, raw)
	}
	return s, nil
}

func (r *Registry) enumFromJSON(t *Type, raw any, depth int) (Value, error) {
	idx, payload, err := enumVariant(t, raw)
	if err != nil {
		return nil, err
	}
	v := t.Variants[idx]
	e := &Enum{Variant: v.Name, Index: byte(idx)}
	if v.Type != nil {
		e.Value, err = r.fromJSON(v.Type, payload, depth+1)
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", v.Name, err)
		}
	}
	return e, nil
}

// EncodeJSON converts v into a JSON-marshalable form of the given type, it's
// used for RPC parameters.
func (r *Registry) EncodeJSON(expr string, v any) (any, error) {
	t, err := r.Type(expr)
	if err != nil {
		return nil, err
	}
	res, err := r.toJSON(t, v, 0)
	if err != nil {
		return nil, fmt.Errorf("can't encode %s: %w", expr, err)
	}
	return res, nil
}

func (r *Registry) toJSON(t *Type, v any, depth int) (any, error) {
	if depth > maxDepth {
		return nil, errTooDeep
	}
	t, err := r.resolve(t)
	if err != nil {
		return nil, err
	}
	switch t.Kind {
	case KindNull:
		return nil, nil
	case KindBool:
		return toBool(t, v)
	case KindUint:
		n, err := toUint(t, v)
		if err != nil {
			return nil, err
		}
		return jsonUint(n), nil
	case KindInt:
		n, err := toInt(t, v)
		if err != nil {
			return nil, err
		}
		if n.IsInt64() {
			return n.Int64(), nil
		}
		return n, nil
	case KindText:
		return toText(t, v)
	case KindBytes, KindFixedBytes:
		size := t.Size
		if t.Kind == KindBytes {
			size = 0
		}
		b, err := toBytes(t, v, size)
		if err != nil {
			return nil, err
		}
		return "0x" + hex.EncodeToString(b), nil
	case KindHash:
		b, err := toBytes(t, v, t.Size)
		if err != nil {
			return nil, err
		}
		return util.HashDecodeBytes(b)
	case KindAccountID:
		a, err := toAccount(t, v)
		if err != nil {
			return nil, err
		}
		return keys.EncodeAddress(a, keys.DefaultSS58Prefix), nil
	case KindVec, KindArray, KindTuple:
		l, err := toList(t, v)
		if err != nil {
			return nil, err
		}
		if t.Kind == KindArray && len(l) != t.Size || t.Kind == KindTuple && len(l) != len(t.Elems) {
			return nil, fmt.Errorf("%w: %d elements for %s", ErrTypeMismatch, len(l), t)
		}
		res := make([]any, len(l))
		for i := range l {
			et := t.Elem
			if t.Kind == KindTuple {
				et = t.Elems[i]
			}
			if res[i], err = r.toJSON(et, l[i], depth+1); err != nil {
				return nil, err
			}
		}
		return res, nil
	case KindOption:
		if isNone(v) {
			return nil, nil
		}
		return r.toJSON(t.Elem, v, depth+1)
	case KindCompact:
		return r.toJSON(t.Elem, v, depth+1)
	case KindStruct:
		fields, err := structFields(t, v)
		if err != nil {
			return nil, err
		}
		res := make(map[string]any, len(fields))
		for i, f := range t.Fields {
			if res[f.Name], err = r.toJSON(f.Type, fields[i], depth+1); err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
		}
		return res, nil
	case KindEnum:
		idx, payload, err := enumVariant(t, v)
		if err != nil {
			return nil, err
		}
		variant := t.Variants[idx]
		if variant.Type == nil {
			return variant.Name, nil
		}
		p, err := r.toJSON(variant.Type, payload, depth+1)
		if err != nil {
			return nil, err
		}
		return map[string]any{variant.Name: p}, nil
	}
	return nil, fmt.Errorf("%w: kind %d", ErrUnsupported, t.Kind)
}

// jsonUint returns a number if it fits into uint64 and a 0x hex string
// otherwise.
func jsonUint(n *uint256.Int) any {
	if n.IsUint64() {
		return n.Uint64()
	}
	return n.Hex()
}
