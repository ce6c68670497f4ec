package router

import "github.com/undercontrol/gateway/internal/adapter"

// Command is one normalised request: which entry, which operation, with
// what parameters. Commands are transient; they are built per request and
// never persisted.
type Command struct {
	EntryID   string         `json:"entry_id"`
	Operation string         `json:"operation"`
	Params    adapter.Params `json:"params,omitempty"`
}

// Failure kinds carried in envelopes. The first two originate in the router
// itself; the middle five mirror the adapter error taxonomy; the last marks
// a contract violation inside an adapter.
const (
	FailUnknownEntry         = "unknown_entry"
	FailUnsupportedOperation = "unsupported_operation"
	FailInvalidParams        = "invalid_params"
	FailUnauthorized         = "unauthorized"
	FailUnreachable          = "unreachable"
	FailVendorError          = "vendor_error"
	FailInternalFault        = "internal_adapter_fault"
)

// OutcomeSuccess is the outcome label observers receive for successful
// commands; failures are labelled with their failure kind.
const OutcomeSuccess = "success"

// Failure describes why a command did not succeed.
type Failure struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Detail  map[string]any `json:"detail,omitempty"`
}

// Envelope is the canonical result shape returned for every routed command:
// tagged success with an opaque payload, or failure with kind and message.
type Envelope struct {
	OK      bool     `json:"ok"`
	Payload any      `json:"payload,omitempty"`
	Error   *Failure `json:"error,omitempty"`
}

// Outcome returns the observer label for this envelope.
func (e Envelope) Outcome() string {
	if e.OK {
		return OutcomeSuccess
	}
	return e.Error.Kind
}

// success wraps a raw adapter payload unchanged. The router does not
// interpret vendor-specific payload shapes.
func success(payload any) Envelope {
	return Envelope{OK: true, Payload: payload}
}

// failure builds a failure envelope.
func failure(kind, message string) Envelope {
	return Envelope{OK: false, Error: &Failure{Kind: kind, Message: message}}
}
