package codec

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	json "github.com/nspcc-dev/go-ordered-json"
	"github.com/nspcc-dev/subgo/pkg/scale"
	"github.com/nspcc-dev/subgo/pkg/typereg"
)

// DefaultCacheSize is the default number of parsed type expressions kept by
// Registry.
const DefaultCacheSize = 256

// Registry resolves type expressions against a schema. It's immutable after
// creation and safe for concurrent use.
type Registry struct {
	defs  map[string]*Type
	cache *lru.Cache
}

// NewRegistry creates a registry from built-in definitions merged with the
// given schema (schema wins). Primitive names can't be redefined and are
// skipped, so are opaque definitions (they name no type). Definitions are parsed eagerly, references between them are
// resolved lazily, so a schema can mention types it doesn't define as long as
// they're never used.
func NewRegistry(schema typereg.Schema, cacheSize int) (*Registry, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	r := &Registry{defs: make(map[string]*Type)}
	r.cache, _ = lru.New(cacheSize) // Never errors for positive size.

	all := Builtin()
	for name, def := range schema {
		all[name] = def
	}
	for name, def := range all {
		if IsPrimitive(name) || def.IsOpaque() {
			continue
		}
		t, err := parseDefinition(def)
		if err != nil {
			return nil, fmt.Errorf("type %s: %w", name, err)
		}
		r.defs[name] = t
	}
	for name, t := range r.defs {
		if t.Kind != KindNamed {
			continue
		}
		if _, err := r.resolve(t); err != nil && !errors.Is(err, ErrUnknownType) {
			return nil, fmt.Errorf("type %s: %w", name, err)
		}
	}
	return r, nil
}

func parseDefinition(def typereg.Definition) (*Type, error) {
	if def.IsAlias() {
		return ParseType(def.Alias)
	}
	if len(def.Object) == 1 {
		switch def.Object[0].Key {
		case "_enum":
			return parseEnum(def.Object[0].Value)
		case "_set":
			return nil, fmt.Errorf("%w: _set", ErrUnsupported)
		}
	}
	t := &Type{Kind: KindStruct}
	for _, m := range def.Object {
		if strings.HasPrefix(m.Key, "_") {
			// Serialization hints like _alias.
			continue
		}
		expr, ok := m.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: field %s should be a type expression", ErrUnsupported, m.Key)
		}
		ft, err := ParseType(expr)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", m.Key, err)
		}
		t.Fields = append(t.Fields, FieldType{Name: m.Key, Type: ft})
	}
	return t, nil
}

func parseEnum(body any) (*Type, error) {
	t := &Type{Kind: KindEnum}
	switch body := body.(type) {
	case []any:
		for _, v := range body {
			name, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: enum variant %v", ErrUnsupported, v)
			}
			t.Variants = append(t.Variants, VariantType{Name: name})
		}
	case json.OrderedObject:
		for _, m := range body {
			expr, ok := m.Value.(string)
			if !ok {
				return nil, fmt.Errorf("%w: enum variant %s", ErrUnsupported, m.Key)
			}
			v := VariantType{Name: m.Key}
			if expr != "" && expr != "Null" && expr != "()" {
				vt, err := ParseType(expr)
				if err != nil {
					return nil, fmt.Errorf("variant %s: %w", m.Key, err)
				}
				v.Type = vt
			}
			t.Variants = append(t.Variants, v)
		}
	default:
		return nil, fmt.Errorf("%w: enum body %T", ErrUnsupported, body)
	}
	if len(t.Variants) == 0 || len(t.Variants) > 256 {
		return nil, fmt.Errorf("%w: enum with %d variants", ErrUnsupported, len(t.Variants))
	}
	return t, nil
}

// Type parses a type expression (using cache).
func (r *Registry) Type(expr string) (*Type, error) {
	if t, ok := r.cache.Get(expr); ok {
		return t.(*Type), nil
	}
	t, err := ParseType(expr)
	if err != nil {
		return nil, err
	}
	r.cache.Add(expr, t)
	return t, nil
}

// Has checks whether expression can be fully resolved.
func (r *Registry) Has(expr string) bool {
	t, err := r.Type(expr)
	if err != nil {
		return false
	}
	return r.check(t, 0) == nil
}

// Names returns sorted names of all definitions.
func (r *Registry) Names() []string {
	res := make([]string, 0, len(r.defs))
	for name := range r.defs {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// resolve follows named references until a structural type.
func (r *Registry) resolve(t *Type) (*Type, error) {
	for i := 0; t.Kind == KindNamed; i++ {
		if i > len(r.defs) {
			return nil, fmt.Errorf("%w: alias cycle at %s", ErrUnsupported, t.Name)
		}
		d, ok := r.defs[t.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownType, t.Name)
		}
		t = d
	}
	return t, nil
}

// check walks t making sure every reference is known.
func (r *Registry) check(t *Type, depth int) error {
	if depth > maxDepth {
		return nil // Recursive types are fine.
	}
	t, err := r.resolve(t)
	if err != nil {
		return err
	}
	if t.Elem != nil {
		if err := r.check(t.Elem, depth+1); err != nil {
			return err
		}
	}
	for _, e := range t.Elems {
		if err := r.check(e, depth+1); err != nil {
			return err
		}
	}
	for _, f := range t.Fields {
		if err := r.check(f.Type, depth+1); err != nil {
			return err
		}
	}
	for _, v := range t.Variants {
		if v.Type == nil {
			continue
		}
		if err := r.check(v.Type, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Decode decodes SCALE-encoded data of the given type, all of data must be
// consumed.
func (r *Registry) Decode(expr string, data []byte) (Value, error) {
	t, err := r.Type(expr)
	if err != nil {
		return nil, err
	}
	v, err := r.decodeAll(t, data)
	if err != nil {
		return nil, fmt.Errorf("can't decode %s: %w", expr, err)
	}
	return v, nil
}

// DecodeFrom decodes a value of type t from br, errors are reported via br.Err.
func (r *Registry) DecodeFrom(br *scale.BinReader, t *Type) Value {
	d := decoder{r: r, br: br}
	return d.decode(t, 0)
}

// Encode SCALE-encodes v as a value of the given type. See coerce.go for the
// accepted Go representations.
func (r *Registry) Encode(expr string, v any) ([]byte, error) {
	t, err := r.Type(expr)
	if err != nil {
		return nil, err
	}
	bw := scale.NewBinWriter()
	r.EncodeTo(bw, t, v)
	if bw.Err != nil {
		return nil, fmt.Errorf("can't encode %s: %w", expr, bw.Err)
	}
	return bw.Bytes(), nil
}

// EncodeTo encodes v as a value of type t to bw, errors are reported via
// bw.Err.
func (r *Registry) EncodeTo(bw *scale.BinWriter, t *Type, v any) {
	e := encoder{r: r, bw: bw}
	e.encode(t, v, 0)
}
