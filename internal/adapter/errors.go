package adapter

import (
	"errors"
	"fmt"
)

// Kind classifies an adapter failure. Every vendor failure is normalised
// into exactly one of these at the contract boundary.
type Kind string

// The fixed adapter error taxonomy.
const (
	// KindInvalidParams means the command parameters were malformed or out
	// of range for the operation.
	KindInvalidParams Kind = "invalid_params"

	// KindUnauthorized means the vendor rejected the gateway's credentials
	// (expired pairing key, bad token, ...).
	KindUnauthorized Kind = "unauthorized"

	// KindUnreachable means the vendor device or service could not be
	// reached, including per-call timeouts.
	KindUnreachable Kind = "unreachable"

	// KindVendorError means the vendor accepted the request but reported a
	// failure of its own. The vendor message is passed through.
	KindVendorError Kind = "vendor_error"

	// KindUnsupported means the instance cannot perform the operation in its
	// current state (e.g. brightness on a non-dimmable bulb).
	KindUnsupported Kind = "unsupported"
)

// Error is the normalised failure shape adapters return from Invoke.
//
// Check with errors.As:
//
//	var aerr *adapter.Error
//	if errors.As(err, &aerr) && aerr.Kind == adapter.KindUnreachable { ... }
type Error struct {
	Kind    Kind
	Message string

	// Detail carries optional vendor-specific context (error codes, raw
	// responses). Never required for routing decisions.
	Detail map[string]any

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("adapter: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("adapter: %s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapErr builds an *Error of the given kind around an underlying cause.
func WrapErr(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// AsError extracts an *Error from err's chain, if present.
func AsError(err error) (*Error, bool) {
	var aerr *Error
	ok := errors.As(err, &aerr)
	return aerr, ok
}

// ConfigError reports a configure-time validation failure. It is distinct
// from Error because configuration problems are an operator concern, not a
// per-request vendor concern.
type ConfigError struct {
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "adapter config: " + e.Message
}

// NewConfigError builds a *ConfigError with a formatted message.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}
