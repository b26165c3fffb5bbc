package chainrpc

import (
	"encoding/json"
	"fmt"

	"github.com/nspcc-dev/subgo/pkg/util"
)

type (
	// RuntimeVersion is the state_getRuntimeVersion result.
	RuntimeVersion struct {
		SpecName           string   `json:"specName"`
		ImplName           string   `json:"implName"`
		AuthoringVersion   uint32   `json:"authoringVersion"`
		SpecVersion        uint32   `json:"specVersion"`
		ImplVersion        uint32   `json:"implVersion"`
		APIs               []APIVer `json:"apis"`
		TransactionVersion uint32   `json:"transactionVersion"`
		StateVersion       uint8    `json:"stateVersion,omitempty"`
	}

	// APIVer is a runtime API identifier with its version, it's a two-element
	// array on the wire.
	APIVer struct {
		ID      util.Bytes
		Version uint32
	}

	// ChainProperties is the system_properties result. Every property is
	// optional.
	ChainProperties struct {
		SS58Format    *uint16
		TokenDecimals []uint32
		TokenSymbol   []string
	}
)

// MarshalJSON implements the json.Marshaler interface.
func (a APIVer) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{a.ID, a.Version})
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (a *APIVer) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("runtime API should be a pair, got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &a.ID); err != nil {
		return fmt.Errorf("bad runtime API id: %w", err)
	}
	return json.Unmarshal(pair[1], &a.Version)
}

type chainPropertiesAux struct {
	SS58Format    *uint16         `json:"ss58Format,omitempty"`
	TokenDecimals json.RawMessage `json:"tokenDecimals,omitempty"`
	TokenSymbol   json.RawMessage `json:"tokenSymbol,omitempty"`
}

// MarshalJSON implements the json.Marshaler interface.
func (p ChainProperties) MarshalJSON() ([]byte, error) {
	aux := struct {
		SS58Format    *uint16  `json:"ss58Format,omitempty"`
		TokenDecimals []uint32 `json:"tokenDecimals,omitempty"`
		TokenSymbol   []string `json:"tokenSymbol,omitempty"`
	}{p.SS58Format, p.TokenDecimals, p.TokenSymbol}
	return json.Marshal(aux)
}

// UnmarshalJSON implements the json.Unmarshaler interface. Token properties
// can be either single values or arrays.
func (p *ChainProperties) UnmarshalJSON(data []byte) error {
	aux := new(chainPropertiesAux)
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	p.SS58Format = aux.SS58Format
	p.TokenDecimals = nil
	p.TokenSymbol = nil
	if err := oneOrMany(aux.TokenDecimals, &p.TokenDecimals); err != nil {
		return fmt.Errorf("tokenDecimals: %w", err)
	}
	if err := oneOrMany(aux.TokenSymbol, &p.TokenSymbol); err != nil {
		return fmt.Errorf("tokenSymbol: %w", err)
	}
	return nil
}

func oneOrMany[T any](data json.RawMessage, res *[]T) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '[' {
		return json.Unmarshal(data, res)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*res = []T{v}
	return nil
}
