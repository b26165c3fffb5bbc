/*
Package unwrap provides a set of proxy methods to process decoded node values.

Functions implemented there are intended to be used as wrappers for other
functions that return (codec.Value, error) pair (like CallRPC or QueryStorage
of the rpcclient package). They check for error, cast the value to an
appropriate type (if everything is OK) and then return a result or error.
*/
package unwrap

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/subgo/pkg/codec"
	"github.com/nspcc-dev/subgo/pkg/crypto/keys"
	"github.com/nspcc-dev/subgo/pkg/util"
)

// ErrNone is returned when Option value unexpectedly turns out to be None.
var ErrNone = errors.New("value is None")

// Uint64 expects an unsigned integer value that fits into uint64.
func Uint64(v codec.Value, err error) (uint64, error) {
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case uint64:
		return n, nil
	case *uint256.Int:
		if !n.IsUint64() {
			return 0, errors.New("uint64 overflow")
		}
		return n.Uint64(), nil
	case int64:
		if n < 0 {
			return 0, errors.New("negative value")
		}
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("not an unsigned integer: %T", v)
	}
}

// Uint32 is similar to Uint64, but checks that the value fits into uint32.
func Uint32(v codec.Value, err error) (uint32, error) {
	n, err := Uint64(v, err)
	if err != nil {
		return 0, err
	}
	if n > math.MaxUint32 {
		return 0, errors.New("uint32 overflow")
	}
	return uint32(n), nil
}

// BigInt expects any integer value and returns it as big.Int.
func BigInt(v codec.Value, err error) (*big.Int, error) {
	if err != nil {
		return nil, err
	}
	switch n := v.(type) {
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case int64:
		return big.NewInt(n), nil
	case *uint256.Int:
		return n.ToBig(), nil
	case *big.Int:
		return new(big.Int).Set(n), nil
	default:
		return nil, fmt.Errorf("not an integer: %T", v)
	}
}

// Bool expects a boolean value.
func Bool(v codec.Value, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("not a boolean: %T", v)
	}
	return b, nil
}

// String expects a text value.
func String(v codec.Value, err error) (string, error) {
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("not a string: %T", v)
	}
	return s, nil
}

// Bytes expects a byte string value (Bytes, fixed-size byte array, hash or
// account).
func Bytes(v codec.Value, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	switch b := v.(type) {
	case []byte:
		return b, nil
	case util.Hash:
		return b[:], nil
	case keys.AccountID:
		return b[:], nil
	default:
		return nil, fmt.Errorf("not a byte string: %T", v)
	}
}

// Hash expects a 32-byte hash value.
func Hash(v codec.Value, err error) (util.Hash, error) {
	if err != nil {
		return util.Hash{}, err
	}
	switch h := v.(type) {
	case util.Hash:
		return h, nil
	case []byte:
		return util.HashDecodeBytes(h)
	default:
		return util.Hash{}, fmt.Errorf("not a hash: %T", v)
	}
}

// AccountID expects an account identifier value.
func AccountID(v codec.Value, err error) (keys.AccountID, error) {
	if err != nil {
		return keys.AccountID{}, err
	}
	switch a := v.(type) {
	case keys.AccountID:
		return a, nil
	case util.Hash:
		return keys.AccountID(a), nil
	default:
		return keys.AccountID{}, fmt.Errorf("not an account: %T", v)
	}
}

// Option checks that the value is not None (ErrNone is returned otherwise)
// and returns it as is.
func Option(v codec.Value, err error) (codec.Value, error) {
	if err != nil {
		return nil, err
	}
	if _, ok := v.(codec.None); ok {
		return nil, ErrNone
	}
	return v, nil
}

// Array expects a sequence value (Vec, array or tuple).
func Array(v codec.Value, err error) ([]codec.Value, error) {
	if err != nil {
		return nil, err
	}
	a, ok := v.([]codec.Value)
	if !ok {
		return nil, fmt.Errorf("not an array: %T", v)
	}
	return a, nil
}

// Field expects a struct value and returns its field with the given name. It
// doesn't accept an error so that it can be chained with other functions of
// this package.
func Field(v codec.Value, name string) (codec.Value, error) {
	s, ok := v.(*codec.Struct)
	if !ok {
		return nil, fmt.Errorf("not a struct: %T", v)
	}
	f, ok := s.Get(name)
	if !ok {
		return nil, fmt.Errorf("no field %q", name)
	}
	return f, nil
}
