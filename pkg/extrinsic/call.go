package extrinsic

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nspcc-dev/subgo/pkg/codec"
	"github.com/nspcc-dev/subgo/pkg/scale"
	"github.com/nspcc-dev/subgo/pkg/util"
	"gopkg.in/yaml.v3"
)

// ErrUnknownCall is returned for calls that have no descriptor.
var ErrUnknownCall = errors.New("unknown call")

// Index is a call index, pallet index followed by the call index inside
// the pallet. It's a `0x`-prefixed hex string in YAML.
type Index [2]byte

// String implements the fmt.Stringer interface.
func (i Index) String() string {
	return util.Bytes(i[:]).String()
}

// MarshalYAML implements the yaml.Marshaler interface.
func (i Index) MarshalYAML() (any, error) {
	return i.String(), nil
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (i *Index) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	b, err := util.DecodeHex(s)
	if err != nil {
		return fmt.Errorf("bad call index %q: %w", s, err)
	}
	if len(b) != len(i) {
		return fmt.Errorf("call index should be %d bytes, got %d", len(i), len(b))
	}
	copy(i[:], b)
	return nil
}

// Param is a call parameter.
type Param struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// CallDescriptor describes a runtime call.
type CallDescriptor struct {
	Module      string  `yaml:"module"`
	Function    string  `yaml:"function"`
	Index       Index   `yaml:"index"`
	Params      []Param `yaml:"params"`
	Description string  `yaml:"description,omitempty"`
}

func (d CallDescriptor) key() string {
	return d.Module + "." + d.Function
}

// TransferDescriptor is the Balances.transfer call of the node template
// runtime.
var TransferDescriptor = CallDescriptor{
	Module:   "Balances",
	Function: "transfer",
	Index:    Index{0x06, 0x00},
	Params: []Param{
		{Name: "dest", Type: "Address"},
		{Name: "value", Type: "Compact<Balance>"},
	},
	Description: "Transfer some liquid free balance to another account.",
}

// Arg is an encoded call argument.
type Arg struct {
	Name  string
	Type  string
	Value any
}

// Call is a runtime call with its arguments.
type Call struct {
	Module   string
	Function string
	Index    Index
	Args     []Arg
}

// String implements the fmt.Stringer interface.
func (c Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = fmt.Sprintf("%s: %v", a.Name, a.Value)
	}
	return fmt.Sprintf("%s.%s(%s)", c.Module, c.Function, strings.Join(args, ", "))
}

// EncodeTo encodes the call index followed by arguments.
func (c Call) EncodeTo(w *scale.BinWriter, reg *codec.Registry) {
	w.WriteBytes(c.Index[:])
	for _, a := range c.Args {
		if w.Err != nil {
			return
		}
		t, err := reg.Type(a.Type)
		if err != nil {
			w.Err = fmt.Errorf("%s: %s: %w", c.Module+"."+c.Function, a.Name, err)
			return
		}
		reg.EncodeTo(w, t, a.Value)
		if w.Err != nil {
			w.Err = fmt.Errorf("%s: %s: %w", c.Module+"."+c.Function, a.Name, w.Err)
		}
	}
}

// Bytes returns SCALE-encoded call.
func (c Call) Bytes(reg *codec.Registry) ([]byte, error) {
	w := scale.NewBinWriter()
	c.EncodeTo(w, reg)
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Bytes(), nil
}

// Registry is a set of call descriptors, it always has TransferDescriptor
// unless it's overridden.
type Registry struct {
	calls map[string]CallDescriptor
}

// NewRegistry creates a call registry, descriptors override built-in ones,
// but the same call can't be described twice.
func NewRegistry(descs ...CallDescriptor) (*Registry, error) {
	r := &Registry{calls: map[string]CallDescriptor{
		TransferDescriptor.key(): TransferDescriptor,
	}}
	seen := make(map[string]bool, len(descs))
	for _, d := range descs {
		if d.Module == "" || d.Function == "" {
			return nil, errors.New("call module and function must be set")
		}
		k := d.key()
		if seen[k] {
			return nil, fmt.Errorf("duplicate call %s", k)
		}
		seen[k] = true
		r.calls[k] = d
	}
	return r, nil
}

// Descriptor returns the call descriptor.
func (r *Registry) Descriptor(module, function string) (CallDescriptor, bool) {
	d, ok := r.calls[module+"."+function]
	return d, ok
}

// Descriptors returns all descriptors sorted by module and function.
func (r *Registry) Descriptors() []CallDescriptor {
	res := make([]CallDescriptor, 0, len(r.calls))
	for _, d := range r.calls {
		res = append(res, d)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].key() < res[j].key() })
	return res
}

// NewCall creates a call from the descriptor and arguments, values are
// checked when the call is encoded.
func (r *Registry) NewCall(module, function string, args ...any) (Call, error) {
	d, ok := r.Descriptor(module, function)
	if !ok {
		return Call{}, fmt.Errorf("%w: %s.%s", ErrUnknownCall, module, function)
	}
	if len(args) != len(d.Params) {
		return Call{}, fmt.Errorf("%s expects %d argument(s), got %d", d.key(), len(d.Params), len(args))
	}
	c := Call{Module: d.Module, Function: d.Function, Index: d.Index, Args: make([]Arg, len(args))}
	for i, p := range d.Params {
		c.Args[i] = Arg{Name: p.Name, Type: p.Type, Value: args[i]}
	}
	return c, nil
}

// Transfer is a shortcut for Balances.transfer call.
func (r *Registry) Transfer(dest any, amount any) (Call, error) {
	return r.NewCall(TransferDescriptor.Module, TransferDescriptor.Function, dest, amount)
}
