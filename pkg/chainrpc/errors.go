package chainrpc

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Standard JSON-RPC 2.0 and Substrate author module error codes.
const (
	ParseErrorCode     = -32700
	InvalidRequestCode = -32600
	MethodNotFoundCode = -32601
	InvalidParamsCode  = -32602
	InternalErrorCode  = -32603

	// BadFormatCode is returned for undecodable extrinsics.
	BadFormatCode = 1001
	// VerificationCode is returned for extrinsics failing verification.
	VerificationCode = 1002
	// InvalidTransactionCode is returned for transactions rejected by the
	// runtime (stale nonce, bad signature, insufficient balance).
	InvalidTransactionCode = 1010
	// UnknownTransactionCode is returned when the validity can't be determined.
	UnknownTransactionCode = 1011
	// TemporarilyBannedCode is returned for recently rejected transactions.
	TemporarilyBannedCode = 1012
	// AlreadyImportedCode is returned for transactions already in the pool.
	AlreadyImportedCode = 1013
	// TooLowPriorityCode is returned when a transaction with the same nonce
	// and higher priority is in the pool.
	TooLowPriorityCode = 1014
	// CycleDetectedCode is returned for dependency cycles in the pool.
	CycleDetectedCode = 1015
	// ImmediatelyDroppedCode is returned when the pool is full.
	ImmediatelyDroppedCode = 1016
)

// Error is a JSON-RPC 2.0 error object. Substrate nodes put strings as well
// as structured data into Data, so it's kept raw.
type Error struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewError creates an error with string data (if any).
func NewError(code int64, message string, data string) *Error {
	e := &Error{Code: code, Message: message}
	if data != "" {
		e.Data, _ = json.Marshal(data)
	}
	return e
}

// DataString returns Data as a string, unquoted if it's a JSON string.
func (e *Error) DataString() string {
	if len(e.Data) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Data, &s); err == nil {
		return s
	}
	return string(e.Data)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Data) == 0 {
		return fmt.Sprintf("%s (%d)", e.Message, e.Code)
	}
	return fmt.Sprintf("%s (%d) - %s", e.Message, e.Code, e.DataString())
}

// IsSubmissionRejection returns true for author module errors returned when
// the node refuses to accept a transaction into the pool.
func (e *Error) IsSubmissionRejection() bool {
	return e.Code >= BadFormatCode && e.Code <= ImmediatelyDroppedCode
}

// IsStaleNonce returns true when the transaction was rejected because its
// nonce is already used (or replaced by a higher priority one). A duplicate
// of a pooled transaction (AlreadyImportedCode) doesn't count, its nonce is
// still in use by the pooled copy.
func (e *Error) IsStaleNonce() bool {
	switch e.Code {
	case TooLowPriorityCode:
		return true
	case InvalidTransactionCode:
		data := strings.ToLower(e.DataString())
		return strings.Contains(data, "outdated") || strings.Contains(data, "stale")
	}
	return false
}
