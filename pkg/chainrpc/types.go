/*
Package chainrpc contains a set of types used for JSON-RPC communication with
Substrate-based nodes. It defines basic request/response types, subscription
notifications, errors and results of the handshake calls.
*/
package chainrpc

import (
	"bytes"
	"encoding/json"
	"strconv"
)

const (
	// JSONRPCVersion is the only JSON-RPC protocol version supported.
	JSONRPCVersion = "2.0"
)

type (
	// Request represents JSON-RPC request. Params are always positional for
	// node calls.
	Request struct {
		// JSONRPC is the protocol version, only valid when it contains JSONRPCVersion.
		JSONRPC string `json:"jsonrpc"`
		// Method is the method being called, like "chain_getBlockHash".
		Method string `json:"method"`
		// Params is a set of method-specific parameters passed to the call.
		Params []any `json:"params"`
		// ID is an identifier associated with this request, the client uses
		// numeric identifiers only.
		ID uint64 `json:"id"`
	}

	// Header is a generic JSON-RPC 2.0 response header (ID and JSON-RPC version).
	Header struct {
		ID      json.RawMessage `json:"id"`
		JSONRPC string          `json:"jsonrpc"`
	}

	// HeaderAndError adds an Error (that can be empty) to the Header.
	HeaderAndError struct {
		Header
		Error *Error `json:"error,omitempty"`
	}

	// Response represents a standard raw JSON-RPC 2.0 response.
	Response struct {
		HeaderAndError
		Result json.RawMessage `json:"result,omitempty"`
	}

	// Notification is a subscription event. It looks like a request without
	// ID, its "method" is the subscription notification name and params
	// carry the subscription ID with the event itself.
	Notification struct {
		JSONRPC string             `json:"jsonrpc"`
		Method  string             `json:"method"`
		Params  NotificationParams `json:"params"`
	}

	// NotificationParams is a subscription event payload.
	NotificationParams struct {
		Subscription SubscriptionID  `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	}

	// Message is any message received from the node, it's either a Response
	// (ID is set) or a Notification (Method is set).
	Message struct {
		Response
		Method string             `json:"method,omitempty"`
		Params NotificationParams `json:"params"`
	}
)

// SubscriptionID is a subscription identifier returned by subscribing
// methods. Nodes use both strings and numbers for it, so it's kept in a
// normalized string form.
type SubscriptionID string

// UnmarshalJSON implements the json.Unmarshaler interface.
func (s *SubscriptionID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = SubscriptionID(str)
		return nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return err
	}
	*s = SubscriptionID(n.String())
	return nil
}

// MarshalJSON implements the json.Marshaler interface. Numeric IDs are
// marshaled back as numbers.
func (s SubscriptionID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseUint(string(s), 10, 64); err == nil {
		return []byte(s), nil
	}
	return json.Marshal(string(s))
}

// IsNotification returns true for subscription events.
func (m *Message) IsNotification() bool {
	return m.Method != "" && len(m.ID) == 0
}

// NumericID returns response ID as a number.
func (m *Message) NumericID() (uint64, bool) {
	if len(m.ID) == 0 {
		return 0, false
	}
	id, err := strconv.ParseUint(string(m.ID), 10, 64)
	return id, err == nil
}
