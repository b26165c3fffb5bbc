/*
Package typereg loads, merges and persists custom type definitions used to
decode chain data. A schema is a mapping from type name to its definition,
built once from an ordered list of JSON fragments, where later fragments
override earlier ones.
*/
package typereg

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	json "github.com/nspcc-dev/go-ordered-json"
)

// Definition is a single type definition. It's either an alias (type
// expression like "u32" or "Vec<AccountId>") or a structured descriptor
// (struct fields, "_enum" or "_set" object) with member order preserved.
// Any other JSON value (number, boolean, array) is kept as is in Value, such
// opaque definitions are merged and persisted but don't describe a type.
type Definition struct {
	Alias  string
	Object json.OrderedObject
	Value  any
}

// AliasOf returns an alias Definition.
func AliasOf(expr string) Definition {
	return Definition{Alias: expr}
}

// StructOf returns a structured Definition with the given members, they're
// expected to be name/type pairs.
func StructOf(members ...string) Definition {
	if len(members)%2 != 0 {
		panic("odd number of struct members")
	}
	obj := make(json.OrderedObject, 0, len(members)/2)
	for i := 0; i < len(members); i += 2 {
		obj = append(obj, json.Member{Key: members[i], Value: members[i+1]})
	}
	return Definition{Object: obj}
}

// IsAlias returns true for alias definitions.
func (d Definition) IsAlias() bool {
	return d.Object == nil && d.Value == nil
}

// IsOpaque returns true for definitions that are neither an alias nor an
// object.
func (d Definition) IsOpaque() bool {
	return d.Object == nil && d.Value != nil
}

// MarshalJSON implements the json.Marshaler interface.
func (d Definition) MarshalJSON() ([]byte, error) {
	if d.IsOpaque() {
		return json.Marshal(d.Value)
	}
	if d.IsAlias() {
		return json.Marshal(d.Alias)
	}
	return json.Marshal(d.Object)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (d *Definition) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseOrderedObject()
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	def, err := definitionFrom(v)
	if err != nil {
		return err
	}
	*d = def
	return nil
}

func definitionFrom(v any) (Definition, error) {
	switch v := v.(type) {
	case string:
		return Definition{Alias: v}, nil
	case json.OrderedObject:
		if v == nil {
			v = json.OrderedObject{}
		}
		return Definition{Object: v}, nil
	case nil:
		return Definition{}, errors.New("definition can't be null")
	default:
		return Definition{Value: v}, nil
	}
}

// Equal checks definitions for logical equality.
func (d Definition) Equal(other Definition) bool {
	a, errA := d.MarshalJSON()
	b, errB := other.MarshalJSON()
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

// Schema maps type names to definitions.
type Schema map[string]Definition

// Names returns sorted type names.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Equal checks schemas for logical equality.
func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for name, def := range s {
		od, ok := other[name]
		if !ok || !def.Equal(od) {
			return false
		}
	}
	return true
}

// Copy returns a shallow copy of the schema.
func (s Schema) Copy() Schema {
	res := make(Schema, len(s))
	for k, v := range s {
		res[k] = v
	}
	return res
}

// parseSchema decodes JSON object into Schema.
func parseSchema(data []byte) (Schema, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseOrderedObject()
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after the schema object")
	}
	obj, ok := v.(json.OrderedObject)
	if !ok {
		return nil, fmt.Errorf("schema should be an object, got %T", v)
	}
	res := make(Schema, len(obj))
	for _, m := range obj {
		def, err := definitionFrom(m.Value)
		if err != nil {
			return nil, fmt.Errorf("type %q: %w", m.Key, err)
		}
		res[m.Key] = def
	}
	return res, nil
}
