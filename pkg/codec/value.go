package codec

import (
	"fmt"
	"strings"
)

// Value is a decoded value. Concrete types depend on the type it was decoded
// with:
//
//	bool                  bool
//	u8..u64               uint64
//	u128, u256            *uint256.Int
//	i8..i64               int64
//	i128                  *big.Int
//	Text                  string
//	Bytes, [u8; N], H160  []byte
//	H256                  util.Hash
//	AccountId             keys.AccountID
//	Vec, arrays, tuples   []Value
//	Option                None or the inner value
//	Compact<T>            the same as T
//	structs               *Struct
//	enums                 *Enum
//	Null                  nil
type Value = any

// None is the absent Option value.
type None struct{}

// String implements the fmt.Stringer interface.
func (None) String() string {
	return "None"
}

// Field is a named struct member.
type Field struct {
	Name  string
	Value Value
}

// Struct is a decoded struct with fields in declaration order.
type Struct struct {
	Fields []Field
}

// Get returns a field by name.
func (s *Struct) Get(name string) (Value, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return s.Fields[i].Value, true
		}
	}
	return nil, false
}

// String implements the fmt.Stringer interface.
func (s *Struct) String() string {
	parts := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		parts[i] = fmt.Sprintf("%s: %v", f.Name, f.Value)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Enum is a decoded enum variant.
type Enum struct {
	Variant string
	Index   byte
	Value   Value
}

// String implements the fmt.Stringer interface.
func (e *Enum) String() string {
	if e.Value == nil {
		return e.Variant
	}
	return fmt.Sprintf("%s(%v)", e.Variant, e.Value)
}
