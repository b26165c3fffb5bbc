/*
Package util contains some special useful functions/structures used across
the client: fixed-size hashes and hex-encoded byte strings with the `0x`
JSON representation nodes use.
*/
package util

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// HashSize is the size of Hash in bytes.
const HashSize = 32

// Hash is a 32 byte long hash (H256) stored in big-endian (natural) order.
type Hash [HashSize]byte

// HashDecodeString attempts to decode the given hex string (with or without
// `0x` prefix) into a Hash.
func HashDecodeString(s string) (h Hash, err error) {
	b, err := DecodeHex(s)
	if err != nil {
		return h, err
	}
	return HashDecodeBytes(b)
}

// HashDecodeBytes attempts to decode the given bytes into a Hash.
func HashDecodeBytes(b []byte) (h Hash, err error) {
	if len(b) != HashSize {
		return h, fmt.Errorf("expected []byte of size %d got %d", HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// BytesBE returns a byte slice representation of h.
func (h Hash) BytesBE() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// Equals returns true if both Hash values are the same.
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// String implements the stringer interface, `0x`-prefixed hex is returned.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// UnmarshalJSON implements the json unmarshaller interface.
func (h *Hash) UnmarshalJSON(data []byte) (err error) {
	var js string
	if err = json.Unmarshal(data, &js); err != nil {
		return err
	}
	*h, err = HashDecodeString(js)
	return err
}

// MarshalJSON implements the json marshaller interface.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// Bytes is a byte slice that is represented as a `0x`-prefixed hex string in
// JSON.
type Bytes []byte

// String implements the stringer interface.
func (b Bytes) String() string {
	return "0x" + hex.EncodeToString(b)
}

// MarshalJSON implements the json marshaller interface.
func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// UnmarshalJSON implements the json unmarshaller interface.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	var js string
	if err := json.Unmarshal(data, &js); err != nil {
		return err
	}
	dec, err := DecodeHex(js)
	if err != nil {
		return err
	}
	*b = dec
	return nil
}

// DecodeHex decodes hex string with an optional `0x` prefix.
func DecodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
