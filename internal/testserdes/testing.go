package testserdes

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/nspcc-dev/subgo/pkg/scale"
	"github.com/stretchr/testify/require"
)

// Serializable is a value with SCALE binary encoding methods.
type Serializable interface {
	EncodeBinary(*scale.BinWriter)
	DecodeBinary(*scale.BinReader)
}

// MarshalUnmarshalJSON checks if expected stays the same after
// marshal/unmarshal via JSON.
func MarshalUnmarshalJSON(t *testing.T, expected, actual any) {
	data, err := json.Marshal(expected)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, actual))
	require.Equal(t, expected, actual)
}

// EncodeDecodeBinary checks if expected stays the same after
// serializing/deserializing via Serializable methods.
func EncodeDecodeBinary(t *testing.T, expected, actual Serializable) {
	data, err := EncodeBinary(expected)
	require.NoError(t, err)
	require.NoError(t, DecodeBinary(data, actual))
	require.Equal(t, expected, actual)
}

// EncodeBinary serializes a to a byte slice.
func EncodeBinary(a Serializable) ([]byte, error) {
	w := scale.NewBinWriter()
	a.EncodeBinary(w)
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Bytes(), nil
}

// DecodeBinary deserializes a from a byte slice, all of the data must be
// consumed.
func DecodeBinary(data []byte, a Serializable) error {
	r := scale.NewBinReaderFromBuf(data)
	a.DecodeBinary(r)
	if r.Err == nil && r.Len() != 0 {
		return fmt.Errorf("%d trailing bytes", r.Len())
	}
	return r.Err
}
