/*
Package codec implements type-driven encoding and decoding of chain data.
Types are described with Substrate-style type expressions ("u32",
"Vec<AccountId>", "Option<(u32, Balance)>", "[u8; 32]") resolved against a
schema of named definitions (see package typereg). Values are decoded from
SCALE binary form or from JSON-RPC results and encoded back for storage keys,
RPC parameters and extrinsic calls.
*/
package codec

import (
	"errors"
	"strconv"
	"strings"
)

// Kind is a type kind.
type Kind byte

// Kinds of types.
const (
	KindNull Kind = iota
	KindBool
	KindUint
	KindInt
	KindText
	// KindBytes is Vec<u8>.
	KindBytes
	// KindFixedBytes is [u8; N], H160 and H512.
	KindFixedBytes
	// KindHash is H256.
	KindHash
	KindAccountID
	KindVec
	KindArray
	KindTuple
	KindOption
	KindCompact
	KindStruct
	KindEnum
	// KindNamed is a reference to a schema definition.
	KindNamed
)

// Various codec errors.
var (
	ErrUnknownType  = errors.New("unknown type")
	ErrUnsupported  = errors.New("unsupported type")
	ErrSyntax       = errors.New("invalid type expression")
	ErrTypeMismatch = errors.New("value doesn't match type")
)

// Type is a parsed type expression.
type Type struct {
	Kind Kind
	// Name is the referenced definition for KindNamed and the primitive name
	// otherwise (if any).
	Name string
	// Size is the byte width of integers and the length of arrays and fixed
	// byte strings.
	Size     int
	Elem     *Type
	Elems    []*Type
	Fields   []FieldType
	Variants []VariantType
}

// FieldType is a struct field.
type FieldType struct {
	Name string
	Type *Type
}

// VariantType is an enum variant, Type is nil for variants without payload.
type VariantType struct {
	Name string
	Type *Type
}

var (
	nullType    = &Type{Kind: KindNull, Name: "Null"}
	u8Type      = &Type{Kind: KindUint, Name: "u8", Size: 1}
	primitives  = map[string]*Type{}
	primitiveTs = []*Type{
		nullType,
		{Kind: KindBool, Name: "bool"},
		u8Type,
		{Kind: KindUint, Name: "u16", Size: 2},
		{Kind: KindUint, Name: "u32", Size: 4},
		{Kind: KindUint, Name: "u64", Size: 8},
		{Kind: KindUint, Name: "u128", Size: 16},
		{Kind: KindUint, Name: "u256", Size: 32},
		{Kind: KindInt, Name: "i8", Size: 1},
		{Kind: KindInt, Name: "i16", Size: 2},
		{Kind: KindInt, Name: "i32", Size: 4},
		{Kind: KindInt, Name: "i64", Size: 8},
		{Kind: KindInt, Name: "i128", Size: 16},
		{Kind: KindText, Name: "Text"},
		{Kind: KindText, Name: "String"},
		{Kind: KindText, Name: "str"},
		{Kind: KindBytes, Name: "Bytes"},
		{Kind: KindFixedBytes, Name: "H160", Size: 20},
		{Kind: KindHash, Name: "H256", Size: 32},
		{Kind: KindFixedBytes, Name: "H512", Size: 64},
		{Kind: KindAccountID, Name: "AccountId", Size: 32},
	}
)

func init() {
	for _, t := range primitiveTs {
		primitives[t.Name] = t
	}
	primitives["()"] = nullType
}

// IsPrimitive returns true if name is a built-in primitive type that can't be
// redefined by a schema.
func IsPrimitive(name string) bool {
	_, ok := primitives[name]
	return ok
}

// String returns type expression for t.
func (t *Type) String() string {
	switch t.Kind {
	case KindVec:
		return "Vec<" + t.Elem.String() + ">"
	case KindOption:
		return "Option<" + t.Elem.String() + ">"
	case KindCompact:
		return "Compact<" + t.Elem.String() + ">"
	case KindArray:
		return "[" + t.Elem.String() + "; " + strconv.Itoa(t.Size) + "]"
	case KindFixedBytes:
		if t.Name != "" {
			return t.Name
		}
		return "[u8; " + strconv.Itoa(t.Size) + "]"
	case KindBytes:
		if t.Name != "" {
			return t.Name
		}
		return "Vec<u8>"
	case KindTuple:
		parts := make([]string, len(t.Elems))
		for i := range t.Elems {
			parts[i] = t.Elems[i].String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindStruct:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.Name + ": " + f.Type.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindEnum:
		parts := make([]string, len(t.Variants))
		for i, v := range t.Variants {
			parts[i] = v.Name
			if v.Type != nil {
				parts[i] += "(" + v.Type.String() + ")"
			}
		}
		return "enum{" + strings.Join(parts, " | ") + "}"
	default:
		return t.Name
	}
}
