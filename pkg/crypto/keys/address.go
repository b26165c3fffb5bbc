package keys

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/nspcc-dev/subgo/pkg/crypto/hash"
)

// DefaultSS58Prefix is the generic Substrate address prefix.
const DefaultSS58Prefix uint16 = 42

// AccountIDSize is the size of AccountID in bytes.
const AccountIDSize = 32

var ss58Pre = []byte("SS58PRE")

// AccountID is a 32-byte account identifier.
type AccountID [AccountIDSize]byte

// String returns the SS58 address with the default prefix.
func (a AccountID) String() string {
	return EncodeAddress(a, DefaultSS58Prefix)
}

// Hex returns `0x`-prefixed hex representation of a.
func (a AccountID) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// MarshalJSON implements the json.Marshaler interface.
func (a AccountID) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface, both SS58 and hex
// forms are accepted.
func (a *AccountID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := ParseAccountID(s)
	if err != nil {
		return err
	}
	*a = id
	return nil
}

// ParseAccountID accepts either SS58 address or `0x`-prefixed hex account.
func ParseAccountID(s string) (AccountID, error) {
	if strings.HasPrefix(s, "0x") {
		var id AccountID
		b, err := hex.DecodeString(s[2:])
		if err != nil {
			return id, err
		}
		if len(b) != AccountIDSize {
			return id, fmt.Errorf("expected %d bytes account got %d", AccountIDSize, len(b))
		}
		copy(id[:], b)
		return id, nil
	}
	id, _, err := DecodeAddress(s)
	return id, err
}

// EncodeAddress returns SS58 representation of the account for the given
// network prefix.
func EncodeAddress(id AccountID, prefix uint16) string {
	var pre []byte
	if prefix < 64 {
		pre = []byte{byte(prefix)}
	} else {
		pre = []byte{
			byte((prefix&0b0000_0000_1111_1100)>>2) | 0b0100_0000,
			byte(prefix>>8) | byte((prefix&0b0000_0000_0000_0011)<<6),
		}
	}
	payload := append(pre, id[:]...)
	payload = append(payload, ss58Checksum(payload)...)
	return base58.Encode(payload)
}

// DecodeAddress parses SS58 address returning the account and the network
// prefix.
func DecodeAddress(s string) (AccountID, uint16, error) {
	var id AccountID
	b, err := base58.Decode(s)
	if err != nil {
		return id, 0, fmt.Errorf("invalid base58: %w", err)
	}
	if len(b) < 1 {
		return id, 0, errors.New("empty address")
	}
	var (
		prefix uint16
		preLen int
	)
	switch {
	case b[0] < 64:
		prefix, preLen = uint16(b[0]), 1
	case b[0] < 128:
		if len(b) < 2 {
			return id, 0, errors.New("address is too short")
		}
		lower := (b[0] << 2) | (b[1] >> 6)
		upper := b[1] & 0b0011_1111
		prefix, preLen = uint16(lower)|uint16(upper)<<8, 2
	default:
		return id, 0, fmt.Errorf("invalid address prefix byte %#x", b[0])
	}
	if len(b) != preLen+AccountIDSize+2 {
		return id, 0, fmt.Errorf("unexpected address length %d", len(b))
	}
	body, checksum := b[:preLen+AccountIDSize], b[preLen+AccountIDSize:]
	if !bytes.Equal(ss58Checksum(body), checksum) {
		return id, 0, errors.New("address checksum mismatch")
	}
	copy(id[:], body[preLen:])
	return id, prefix, nil
}

func ss58Checksum(data []byte) []byte {
	return hash.Blake2b512(append(append([]byte{}, ss58Pre...), data...))[:2]
}
