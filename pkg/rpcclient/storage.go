package rpcclient

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nspcc-dev/subgo/pkg/codec"
	"github.com/nspcc-dev/subgo/pkg/crypto/hash"
	"github.com/nspcc-dev/subgo/pkg/crypto/keys"
	"github.com/nspcc-dev/subgo/pkg/rpcclient/unwrap"
	"github.com/nspcc-dev/subgo/pkg/util"
	"go.uber.org/zap"
)

// StorageDescriptor describes a storage item, it has one hasher per key
// (none for plain values, one for maps, two for double maps).
type StorageDescriptor struct {
	Module      string        `yaml:"module"`
	Item        string        `yaml:"item"`
	Hashers     []hash.Hasher `yaml:"hashers"`
	Keys        []string      `yaml:"keys"`
	Type        string        `yaml:"type"`
	Description string        `yaml:"description"`
}

var builtinStorage = []StorageDescriptor{
	{Module: "System", Item: "Account", Hashers: []hash.Hasher{hash.Blake2_128Concat},
		Keys: []string{"AccountId"}, Type: "AccountInfo", Description: "The full account information for a particular account ID"},
}

func (d StorageDescriptor) key() string {
	return d.Module + "." + d.Item
}

func (d StorageDescriptor) validate(reg *codec.Registry) error {
	if d.Module == "" || d.Item == "" {
		return errors.New("storage module and item must be set")
	}
	if len(d.Hashers) != len(d.Keys) {
		return fmt.Errorf("storage %s: %d hashers for %d keys", d.key(), len(d.Hashers), len(d.Keys))
	}
	if _, err := reg.Type(d.Type); err != nil {
		return fmt.Errorf("storage %s: value: %w", d.key(), err)
	}
	for i, k := range d.Keys {
		if _, err := reg.Type(k); err != nil {
			return fmt.Errorf("storage %s: key %d: %w", d.key(), i, err)
		}
	}
	return nil
}

// RegisterStorage adds a storage item descriptor. It's only possible before
// Init, built-in items can be overridden once.
func (c *WSClient) RegisterStorage(d StorageDescriptor) error {
	if err := d.validate(c.registry); err != nil {
		return err
	}
	c.tableLock.Lock()
	defer c.tableLock.Unlock()
	if c.isInitialized() {
		return ErrAlreadyInitialized
	}
	k := d.key()
	if c.userStors[k] {
		return fmt.Errorf("%w: %s", ErrDuplicateStorage, k)
	}
	c.storage[k] = d
	c.userStors[k] = true
	c.log.Debug("storage item registered", zap.String("item", k))
	return nil
}

// Storage returns the storage item descriptor.
func (c *WSClient) Storage(module, item string) (StorageDescriptor, bool) {
	c.tableLock.RLock()
	defer c.tableLock.RUnlock()
	d, ok := c.storage[module+"."+item]
	return d, ok
}

// StorageKey returns the storage key for the item and keys:
// twox128(module) + twox128(item) + hasher_i(encode(key_i)).
func (c *WSClient) StorageKey(module, item string, args ...any) ([]byte, error) {
	d, ok := c.Storage(module, item)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrStorageNotFound, module, item)
	}
	return c.storageKey(d, args)
}

func (c *WSClient) storageKey(d StorageDescriptor, args []any) ([]byte, error) {
	if len(args) != len(d.Keys) {
		return nil, fmt.Errorf("%w: %s needs %d key(s), got %d", ErrInvalidParams, d.key(), len(d.Keys), len(args))
	}
	res := make([]byte, 0, 32+len(args)*48)
	res = append(res, hash.Twox128([]byte(d.Module))...)
	res = append(res, hash.Twox128([]byte(d.Item))...)
	for i, k := range args {
		enc, err := c.registry.Encode(d.Keys[i], k)
		if err != nil {
			return nil, fmt.Errorf("%w: %s key %d: %v", ErrInvalidParams, d.key(), i, err)
		}
		h, err := d.Hashers[i].Hash(enc)
		if err != nil {
			return nil, err
		}
		res = append(res, h...)
	}
	return res, nil
}

// QueryStorage reads and decodes a storage value. Absent values are
// reported with ErrMissingValue.
func (c *WSClient) QueryStorage(module, item string, args ...any) (codec.Value, error) {
	v, found, err := c.queryStorage(module, item, args)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s.%s", ErrMissingValue, module, item)
	}
	return v, nil
}

// QueryStorageOptional is the same as QueryStorage, but absent values are
// returned as codec.None.
func (c *WSClient) QueryStorageOptional(module, item string, args ...any) (codec.Value, error) {
	v, found, err := c.queryStorage(module, item, args)
	if err != nil {
		return nil, err
	}
	if !found {
		return codec.None{}, nil
	}
	return v, nil
}

func (c *WSClient) queryStorage(module, item string, args []any) (codec.Value, bool, error) {
	if err := c.checkInit(); err != nil {
		return nil, false, err
	}
	d, ok := c.Storage(module, item)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s.%s", ErrStorageNotFound, module, item)
	}
	key, err := c.storageKey(d, args)
	if err != nil {
		return nil, false, err
	}
	raw, err := c.performRequest("state_getStorage", []any{util.Bytes(key)})
	if err != nil {
		return nil, false, err
	}
	if isNull(raw) {
		return nil, false, nil
	}
	var data util.Bytes
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrDecodeFailure, d.key(), err)
	}
	v, err := c.registry.Decode(d.Type, data)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrDecodeFailure, d.key(), err)
	}
	return v, true, nil
}

// GetAccountNonce returns the nonce of the account from System.Account,
// accounts that don't exist have zero nonce.
func (c *WSClient) GetAccountNonce(account keys.AccountID) (uint32, error) {
	v, err := c.QueryStorage("System", "Account", account)
	if errors.Is(err, ErrMissingValue) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	nonce, err := unwrap.Uint32(unwrap.Field(v, "nonce"))
	if err != nil {
		return 0, fmt.Errorf("%w: account nonce: %v", ErrDecodeFailure, err)
	}
	return nonce, nil
}
