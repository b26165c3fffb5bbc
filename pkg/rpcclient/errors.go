package rpcclient

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/subgo/pkg/txstatus"
)

// Client errors.
var (
	// ErrNotInitialized is returned for calls made before Init.
	ErrNotInitialized = errors.New("client is not initialized")
	// ErrAlreadyInitialized is returned for registrations after Init.
	ErrAlreadyInitialized = errors.New("client is already initialized")
	// ErrMethodNotFound is returned for unregistered methods and for methods
	// the node doesn't know.
	ErrMethodNotFound = errors.New("method not found")
	// ErrInvalidParams is returned when arguments don't match the method or
	// storage item descriptor.
	ErrInvalidParams = errors.New("invalid params")
	// ErrDecodeFailure is returned when a result can't be decoded with the
	// declared type.
	ErrDecodeFailure = errors.New("decode failure")
	// ErrMissingValue is returned for absent non-optional storage values.
	ErrMissingValue = errors.New("missing storage value")
	// ErrStorageNotFound is returned for unregistered storage items.
	ErrStorageNotFound = errors.New("storage item not found")
	// ErrDuplicateMethod is returned when the same method is registered twice.
	ErrDuplicateMethod = errors.New("duplicate method")
	// ErrDuplicateStorage is returned when the same storage item is
	// registered twice.
	ErrDuplicateStorage = errors.New("duplicate storage item")
	// ErrRequestTimeout is returned when the node doesn't answer in time.
	ErrRequestTimeout = errors.New("request timeout")
	// ErrConnectionClosed is returned for requests made after the connection
	// is lost or closed and for requests that were pending at that moment.
	ErrConnectionClosed = txstatus.ErrConnectionClosed
)

// ConnectionError is returned when the node can't be reached or the
// handshake fails.
type ConnectionError struct {
	Endpoint string
	Err      error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Endpoint, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}
