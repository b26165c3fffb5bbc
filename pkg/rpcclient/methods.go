package rpcclient

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/subgo/pkg/chainrpc"
	"github.com/nspcc-dev/subgo/pkg/codec"
	"go.uber.org/zap"
)

// Param is a named RPC method parameter.
type Param struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// MethodDescriptor describes a custom RPC method. It's called as
// "<namespace>_<name>" on the wire.
type MethodDescriptor struct {
	Namespace   string  `yaml:"namespace"`
	Name        string  `yaml:"name"`
	Params      []Param `yaml:"params"`
	Type        string  `yaml:"type"`
	Description string  `yaml:"description"`
}

var builtinMethods = []MethodDescriptor{
	{Namespace: "system", Name: "chain", Type: "Text", Description: "Retrieves the chain"},
	{Namespace: "system", Name: "name", Type: "Text", Description: "Retrieves the node name"},
	{Namespace: "system", Name: "version", Type: "Text", Description: "Retrieves the version of the node"},
	{Namespace: "system", Name: "accountNextIndex", Params: []Param{{Name: "accountId", Type: "AccountId"}},
		Type: "Index", Description: "Retrieves the next accountIndex as available on the node"},
	{Namespace: "chain", Name: "getBlockHash", Params: []Param{{Name: "blockNumber", Type: "BlockNumber"}},
		Type: "Hash", Description: "Get the block hash for a specific block"},
	{Namespace: "chain", Name: "getFinalizedHead", Type: "Hash", Description: "Get hash of the last finalized block in the canon chain"},
}

// RPCName returns the wire method name.
func (d MethodDescriptor) RPCName() string {
	return d.Namespace + "_" + d.Name
}

func (d MethodDescriptor) key() string {
	return d.RPCName()
}

func (d MethodDescriptor) validate(reg *codec.Registry) error {
	if d.Namespace == "" || d.Name == "" {
		return errors.New("method namespace and name must be set")
	}
	if d.Type == "" {
		return fmt.Errorf("method %s: result type must be set", d.RPCName())
	}
	if _, err := reg.Type(d.Type); err != nil {
		return fmt.Errorf("method %s: result: %w", d.RPCName(), err)
	}
	for _, p := range d.Params {
		if _, err := reg.Type(p.Type); err != nil {
			return fmt.Errorf("method %s: param %s: %w", d.RPCName(), p.Name, err)
		}
	}
	return nil
}

// RegisterMethod adds a custom method descriptor. It's only possible before
// Init. Built-in methods can be overridden once, the same method registered
// twice is an ErrDuplicateMethod.
func (c *WSClient) RegisterMethod(d MethodDescriptor) error {
	if err := d.validate(c.registry); err != nil {
		return err
	}
	c.tableLock.Lock()
	defer c.tableLock.Unlock()
	if c.isInitialized() {
		return ErrAlreadyInitialized
	}
	k := d.key()
	if c.userMeths[k] {
		return fmt.Errorf("%w: %s", ErrDuplicateMethod, k)
	}
	c.methods[k] = d
	c.userMeths[k] = true
	c.log.Debug("method registered", zap.String("method", k))
	return nil
}

// Method returns the method descriptor.
func (c *WSClient) Method(namespace, name string) (MethodDescriptor, bool) {
	c.tableLock.RLock()
	defer c.tableLock.RUnlock()
	d, ok := c.methods[namespace+"_"+name]
	return d, ok
}

// Methods returns all known method descriptors.
func (c *WSClient) Methods() []MethodDescriptor {
	c.tableLock.RLock()
	defer c.tableLock.RUnlock()
	res := make([]MethodDescriptor, 0, len(c.methods))
	for _, d := range c.methods {
		res = append(res, d)
	}
	return res
}

// CallRPC calls a registered method with the given arguments (see
// codec.Registry.EncodeJSON for accepted values) and returns the result
// decoded with the declared type.
func (c *WSClient) CallRPC(namespace, method string, args ...any) (codec.Value, error) {
	if err := c.checkInit(); err != nil {
		return nil, err
	}
	d, ok := c.Method(namespace, method)
	if !ok {
		return nil, fmt.Errorf("%w: %s_%s", ErrMethodNotFound, namespace, method)
	}
	if len(args) != len(d.Params) {
		return nil, fmt.Errorf("%w: %s expects %d argument(s), got %d", ErrInvalidParams, d.RPCName(), len(d.Params), len(args))
	}
	params := make([]any, len(args))
	for i, p := range d.Params {
		v, err := c.registry.EncodeJSON(p.Type, args[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %s: %v", ErrInvalidParams, d.RPCName(), p.Name, err)
		}
		params[i] = v
	}
	raw, err := c.performRequest(d.RPCName(), params)
	if err != nil {
		var rpcErr *chainrpc.Error
		if errors.As(err, &rpcErr) {
			switch rpcErr.Code {
			case chainrpc.MethodNotFoundCode:
				return nil, fmt.Errorf("%w: %s: %w", ErrMethodNotFound, d.RPCName(), rpcErr)
			case chainrpc.InvalidParamsCode:
				return nil, fmt.Errorf("%w: %s: %w", ErrInvalidParams, d.RPCName(), rpcErr)
			}
		}
		return nil, err
	}
	if isNull(raw) {
		raw = []byte("null")
	}
	v, err := c.registry.DecodeJSON(d.Type, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecodeFailure, d.RPCName(), err)
	}
	return v, nil
}
