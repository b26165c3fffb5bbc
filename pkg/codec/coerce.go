package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/subgo/pkg/crypto/keys"
	"github.com/nspcc-dev/subgo/pkg/util"
)

// Go values accepted for encoding, per type kind:
//   - integers: any Go integer type, *big.Int, *uint256.Int, json.Number,
//     integral float64 and strings (decimal or 0x-prefixed big-endian hex);
//   - Bytes: []byte, util.Bytes, hex strings with 0x prefix, other strings as
//     is;
//   - fixed bytes, H256: []byte, util.Hash, [N]byte or hex strings;
//   - AccountId: keys.AccountID, 32 bytes or SS58/hex strings;
//   - sequences and tuples: any slice or array;
//   - structs: *Struct, map[string]any or a positional slice;
//   - enums: *Enum, a variant name, a single-key map or a bare value which
//     is the payload of the first variant.

func mismatch(t *Type, v any) error {
	return fmt.Errorf("%w: %T for %s", ErrTypeMismatch, v, t)
}

func toUint(t *Type, v any) (*uint256.Int, error) {
	var n *uint256.Int
	switch v := v.(type) {
	case *uint256.Int:
		n = v
	case uint256.Int:
		n = &v
	case *big.Int:
		if v.Sign() < 0 {
			return nil, fmt.Errorf("%w: negative value for %s", ErrTypeMismatch, t)
		}
		var overflow bool
		n, overflow = uint256.FromBig(v)
		if overflow {
			return nil, fmt.Errorf("%w: %s overflows %s", ErrTypeMismatch, v, t)
		}
	case json.Number:
		return toUint(t, string(v))
	case float64:
		if v < 0 || v != math.Trunc(v) || v > math.MaxUint64 {
			return nil, fmt.Errorf("%w: %v for %s", ErrTypeMismatch, v, t)
		}
		n = uint256.NewInt(uint64(v))
	case string:
		var err error
		n, err = parseUint(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %q for %s: %v", ErrTypeMismatch, v, t, err)
		}
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			n = uint256.NewInt(rv.Uint())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if rv.Int() < 0 {
				return nil, fmt.Errorf("%w: negative value for %s", ErrTypeMismatch, t)
			}
			n = uint256.NewInt(uint64(rv.Int()))
		default:
			return nil, mismatch(t, v)
		}
	}
	if n.BitLen() > t.Size*8 {
		return nil, fmt.Errorf("%w: %s overflows %s", ErrTypeMismatch, n.ToBig(), t)
	}
	return n, nil
}

func parseUint(s string) (*uint256.Int, error) {
	if strings.HasPrefix(s, "0x") {
		b, err := util.DecodeHex(s)
		if err != nil {
			return nil, err
		}
		if len(b) > 32 {
			return nil, fmt.Errorf("hex number is too long")
		}
		return new(uint256.Int).SetBytes(b), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("not a non-negative integer")
	}
	u, overflow := uint256.FromBig(n)
	if overflow {
		return nil, fmt.Errorf("too big")
	}
	return u, nil
}

func toInt(t *Type, v any) (*big.Int, error) {
	var n *big.Int
	switch v := v.(type) {
	case *big.Int:
		n = v
	case json.Number:
		return toInt(t, string(v))
	case float64:
		if v != math.Trunc(v) || math.Abs(v) > math.MaxInt64 {
			return nil, fmt.Errorf("%w: %v for %s", ErrTypeMismatch, v, t)
		}
		n = big.NewInt(int64(v))
	case string:
		var ok bool
		n, ok = new(big.Int).SetString(v, 10)
		if !ok {
			return nil, fmt.Errorf("%w: %q for %s", ErrTypeMismatch, v, t)
		}
	case *uint256.Int:
		n = v.ToBig()
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n = big.NewInt(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			n = new(big.Int).SetUint64(rv.Uint())
		default:
			return nil, mismatch(t, v)
		}
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size*8-1))
	if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
		return nil, fmt.Errorf("%w: %s overflows %s", ErrTypeMismatch, n, t)
	}
	return n, nil
}

func toBool(t *Type, v any) (bool, error) {
	switch v := v.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("%w: %q for %s", ErrTypeMismatch, v, t)
		}
		return b, nil
	}
	return false, mismatch(t, v)
}

func toText(t *Type, v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	return "", mismatch(t, v)
}

// toBytes converts v to a byte string, size is checked if positive.
func toBytes(t *Type, v any, size int) ([]byte, error) {
	var b []byte
	switch v := v.(type) {
	case []byte:
		b = v
	case util.Bytes:
		b = v
	case util.Hash:
		b = v[:]
	case keys.AccountID:
		b = v[:]
	case string:
		if strings.HasPrefix(v, "0x") {
			var err error
			b, err = util.DecodeHex(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %q for %s: %v", ErrTypeMismatch, v, t, err)
			}
		} else if size <= 0 {
			b = []byte(v)
		} else {
			return nil, fmt.Errorf("%w: %q for %s: hex expected", ErrTypeMismatch, v, t)
		}
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Array || rv.Type().Elem().Kind() != reflect.Uint8 {
			return nil, mismatch(t, v)
		}
		b = make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(b), rv)
	}
	if size > 0 && len(b) != size {
		return nil, fmt.Errorf("%w: %d bytes for %s", ErrTypeMismatch, len(b), t)
	}
	return b, nil
}

func toAccount(t *Type, v any) (keys.AccountID, error) {
	switch v := v.(type) {
	case keys.AccountID:
		return v, nil
	case string:
		a, err := keys.ParseAccountID(v)
		if err != nil {
			return a, fmt.Errorf("%w: %q for %s: %v", ErrTypeMismatch, v, t, err)
		}
		return a, nil
	}
	var a keys.AccountID
	b, err := toBytes(t, v, keys.AccountIDSize)
	if err != nil {
		return a, err
	}
	copy(a[:], b)
	return a, nil
}

// toList converts any slice or array (except byte strings) to []any.
func toList(t *Type, v any) ([]any, error) {
	if l, ok := v.([]any); ok {
		return l, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, mismatch(t, v)
	}
	res := make([]any, rv.Len())
	for i := range res {
		res[i] = rv.Index(i).Interface()
	}
	return res, nil
}

func isNone(v any) bool {
	switch v.(type) {
	case nil, None, *None:
		return true
	}
	return false
}

// structFields maps v to t's fields in order.
func structFields(t *Type, v any) ([]any, error) {
	res := make([]any, len(t.Fields))
	switch v := v.(type) {
	case *Struct:
		for i, f := range t.Fields {
			fv, ok := v.Get(f.Name)
			if !ok {
				return nil, fmt.Errorf("%w: missing field %s", ErrTypeMismatch, f.Name)
			}
			res[i] = fv
		}
		return res, nil
	case map[string]any:
		for i, f := range t.Fields {
			fv, ok := lookupField(v, f.Name)
			if !ok {
				return nil, fmt.Errorf("%w: missing field %s", ErrTypeMismatch, f.Name)
			}
			res[i] = fv
		}
		return res, nil
	}
	l, err := toList(t, v)
	if err != nil {
		return nil, err
	}
	if len(l) != len(t.Fields) {
		return nil, fmt.Errorf("%w: %d values for %d fields", ErrTypeMismatch, len(l), len(t.Fields))
	}
	return l, nil
}

// lookupField finds a field by its name, its camelCase or snake_case form.
func lookupField(m map[string]any, name string) (any, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	if v, ok := m[camelCase(name)]; ok {
		return v, true
	}
	v, ok := m[snakeCase(name)]
	return v, ok
}

func camelCase(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

func snakeCase(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				sb.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// enumVariant picks an enum variant for v and returns its payload.
func enumVariant(t *Type, v any) (int, any, error) {
	switch v := v.(type) {
	case *Enum:
		if v.Variant == "" {
			if int(v.Index) >= len(t.Variants) {
				return 0, nil, fmt.Errorf("%w: enum index %d", ErrTypeMismatch, v.Index)
			}
			return int(v.Index), v.Value, nil
		}
		if i := findVariant(t, v.Variant); i >= 0 {
			return i, v.Value, nil
		}
		return 0, nil, fmt.Errorf("%w: unknown variant %s", ErrTypeMismatch, v.Variant)
	case string:
		if i := findVariant(t, v); i >= 0 {
			return i, nil, nil
		}
	case map[string]any:
		if len(v) == 1 {
			for k, payload := range v {
				if i := findVariant(t, k); i >= 0 {
					return i, payload, nil
				}
			}
		}
	}
	if t.Variants[0].Type == nil {
		return 0, nil, mismatch(t, v)
	}
	return 0, v, nil
}

func findVariant(t *Type, name string) int {
	for i := range t.Variants {
		if strings.EqualFold(t.Variants[i].Name, name) {
			return i
		}
	}
	return -1
}
