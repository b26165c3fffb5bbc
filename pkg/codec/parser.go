package codec

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// maxArrayLen limits [T; N] arrays.
const maxArrayLen = 1 << 16

type parser struct {
	s   string
	pos int
}

// ParseType parses a type expression. Named references are not resolved,
// they're kept as KindNamed types.
func ParseType(expr string) (*Type, error) {
	p := &parser{s: normalize(expr)}
	if p.s == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrSyntax)
	}
	t, err := p.parseType()
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrSyntax, expr, err)
	}
	if p.pos != len(p.s) {
		return nil, fmt.Errorf("%w %q: unexpected %q at %d", ErrSyntax, expr, p.s[p.pos:], p.pos)
	}
	return t, nil
}

// normalize drops spaces, trait paths and lifetimes.
func normalize(expr string) string {
	expr = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, expr)
	expr = strings.ReplaceAll(expr, "&'static", "")
	expr = strings.ReplaceAll(expr, "T::", "")
	expr = strings.ReplaceAll(expr, "<TasTrait>::", "")
	return expr
}

func (p *parser) peek() byte {
	if p.pos < len(p.s) {
		return p.s[p.pos]
	}
	return 0
}

func (p *parser) expect(c byte) error {
	if p.peek() != c {
		if p.pos >= len(p.s) {
			return fmt.Errorf("expected %q at the end", c)
		}
		return fmt.Errorf("expected %q at %d, got %q", c, p.pos, p.s[p.pos])
	}
	p.pos++
	return nil
}

func (p *parser) parseType() (*Type, error) {
	switch p.peek() {
	case '(':
		return p.parseTuple()
	case '[':
		return p.parseArray()
	default:
		return p.parseNamed()
	}
}

func (p *parser) parseTuple() (*Type, error) {
	p.pos++
	if p.peek() == ')' {
		p.pos++
		return nullType, nil
	}
	elems, err := p.parseList(')')
	if err != nil {
		return nil, err
	}
	return &Type{Kind: KindTuple, Elems: elems}, nil
}

func (p *parser) parseArray() (*Type, error) {
	p.pos++
	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if err := p.expect(';'); err != nil {
		return nil, err
	}
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
		p.pos++
	}
	n, err := strconv.Atoi(p.s[start:p.pos])
	if err != nil {
		return nil, fmt.Errorf("bad array length at %d", start)
	}
	if n > maxArrayLen {
		return nil, fmt.Errorf("array is too long (%d)", n)
	}
	if err := p.expect(']'); err != nil {
		return nil, err
	}
	if elem == u8Type {
		return &Type{Kind: KindFixedBytes, Size: n}, nil
	}
	return &Type{Kind: KindArray, Elem: elem, Size: n}, nil
}

// parseList parses comma-separated types up to the closing character.
func (p *parser) parseList(closing byte) ([]*Type, error) {
	var res []*Type
	for {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		res = append(res, t)
		if p.peek() == ',' {
			p.pos++
			continue
		}
		return res, p.expect(closing)
	}
}

func (p *parser) parseNamed() (*Type, error) {
	start := p.pos
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if c != '_' && c != ':' && !unicode.IsLetter(rune(c)) && !unicode.IsDigit(rune(c)) {
			break
		}
		p.pos++
	}
	name := p.s[start:p.pos]
	if name == "" {
		return nil, fmt.Errorf("type name expected at %d", start)
	}
	if idx := strings.LastIndex(name, "::"); idx >= 0 {
		name = name[idx+2:]
	}
	if p.peek() != '<' {
		if t, ok := primitives[name]; ok {
			return t, nil
		}
		if name == "PhantomData" {
			return nullType, nil
		}
		return &Type{Kind: KindNamed, Name: name}, nil
	}
	p.pos++
	params, err := p.parseList('>')
	if err != nil {
		return nil, err
	}
	return generic(name, params)
}

func generic(name string, params []*Type) (*Type, error) {
	want := 1
	switch name {
	case "BTreeMap", "HashMap", "Result", "BoundedVec", "WeakBoundedVec":
		want = 2
	}
	if len(params) != want {
		return nil, fmt.Errorf("%s expects %d parameter(s), got %d", name, want, len(params))
	}
	switch name {
	case "Vec", "VecDeque", "BTreeSet", "HashSet", "BoundedVec", "WeakBoundedVec":
		// Bounds are a compile-time property, the encoding is the same.
		if params[0] == u8Type {
			return &Type{Kind: KindBytes}, nil
		}
		return &Type{Kind: KindVec, Elem: params[0]}, nil
	case "Option":
		return &Type{Kind: KindOption, Elem: params[0]}, nil
	case "Compact":
		return &Type{Kind: KindCompact, Elem: params[0]}, nil
	case "Box", "Arc", "Rc", "Cow":
		return params[0], nil
	case "PhantomData", "ConstU32", "ConstU64":
		return nullType, nil
	case "BTreeMap", "HashMap":
		return &Type{Kind: KindVec, Elem: &Type{Kind: KindTuple, Elems: params}}, nil
	case "Result":
		t := &Type{Kind: KindEnum, Variants: []VariantType{{Name: "Ok"}, {Name: "Err"}}}
		for i, p := range params {
			if p != nullType {
				t.Variants[i].Type = p
			}
		}
		return t, nil
	default:
		return nil, fmt.Errorf("%w: generic %s", ErrUnsupported, name)
	}
}
