package hash

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Hasher is a storage map key hasher.
type Hasher byte

// Storage hashers known to FRAME.
const (
	Blake2_128 Hasher = iota
	Blake2_256
	Blake2_128Concat
	Twox128Hasher
	Twox256Hasher
	Twox64Concat
	Identity
)

var hasherNames = map[Hasher]string{
	Blake2_128:       "Blake2_128",
	Blake2_256:       "Blake2_256",
	Blake2_128Concat: "Blake2_128Concat",
	Twox128Hasher:    "Twox128",
	Twox256Hasher:    "Twox256",
	Twox64Concat:     "Twox64Concat",
	Identity:         "Identity",
}

// String implements the fmt.Stringer interface.
func (h Hasher) String() string {
	if s, ok := hasherNames[h]; ok {
		return s
	}
	return fmt.Sprintf("Hasher(%d)", byte(h))
}

// ParseHasher converts hasher name into Hasher.
func ParseHasher(s string) (Hasher, error) {
	for h, name := range hasherNames {
		if name == s {
			return h, nil
		}
	}
	return 0, fmt.Errorf("unknown hasher %q", s)
}

// Hash applies the hasher to the SCALE-encoded key.
func (h Hasher) Hash(key []byte) ([]byte, error) {
	switch h {
	case Blake2_128:
		return Blake2b128(key), nil
	case Blake2_256:
		sum := Blake2b256(key)
		return sum[:], nil
	case Blake2_128Concat:
		return append(Blake2b128(key), key...), nil
	case Twox128Hasher:
		return Twox128(key), nil
	case Twox256Hasher:
		return Twox256(key), nil
	case Twox64Concat:
		return append(Twox64(key), key...), nil
	case Identity:
		return append([]byte{}, key...), nil
	}
	return nil, fmt.Errorf("unknown hasher %s", h)
}

// MarshalYAML implements the yaml.Marshaler interface.
func (h Hasher) MarshalYAML() (any, error) {
	return h.String(), nil
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (h *Hasher) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := ParseHasher(s)
	if err != nil {
		return err
	}
	*h = v
	return nil
}
