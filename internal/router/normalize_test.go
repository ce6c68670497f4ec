package router

import (
	"errors"
	"testing"

	"github.com/undercontrol/gateway/internal/adapter"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name        string
		payload     any
		err         error
		wantOK      bool
		wantKind    string
		wantMessage string
	}{
		{
			name:    "nil error wraps payload",
			payload: map[string]any{"state": "on"},
			wantOK:  true,
		},
		{
			name:     "invalid params",
			err:      adapter.Errorf(adapter.KindInvalidParams, "brightness out of range"),
			wantKind: FailInvalidParams,
		},
		{
			name:     "unauthorized",
			err:      adapter.Errorf(adapter.KindUnauthorized, "pairing key rejected"),
			wantKind: FailUnauthorized,
		},
		{
			name:     "unreachable",
			err:      adapter.Errorf(adapter.KindUnreachable, "dial timeout"),
			wantKind: FailUnreachable,
		},
		{
			name:     "vendor error",
			err:      adapter.Errorf(adapter.KindVendorError, "device error -3"),
			wantKind: FailVendorError,
		},
		{
			name:     "adapter unsupported maps to unsupported_operation",
			err:      adapter.Errorf(adapter.KindUnsupported, "bulb is not dimmable"),
			wantKind: FailUnsupportedOperation,
		},
		{
			name:        "undeclared error is redacted",
			err:         errors.New("nil map write in vendor lib"),
			wantKind:    FailInternalFault,
			wantMessage: redactedFaultMessage,
		},
		{
			name:        "invented kind is redacted",
			err:         &adapter.Error{Kind: adapter.Kind("weird"), Message: "made this up"},
			wantKind:    FailInternalFault,
			wantMessage: "made this up",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := normalize(tt.payload, tt.err)

			if env.OK != tt.wantOK {
				t.Fatalf("OK = %v, want %v", env.OK, tt.wantOK)
			}
			if tt.wantOK {
				if env.Error != nil {
					t.Errorf("Error = %+v, want nil", env.Error)
				}
				return
			}
			if env.Error == nil {
				t.Fatal("Error = nil, want failure")
			}
			if env.Error.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", env.Error.Kind, tt.wantKind)
			}
			if tt.wantMessage != "" && env.Error.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", env.Error.Message, tt.wantMessage)
			}
		})
	}
}

func TestNormalize_CarriesDetail(t *testing.T) {
	aerr := adapter.Errorf(adapter.KindVendorError, "device reported error code -3")
	aerr.Detail = map[string]any{"err_code": -3}

	env := normalize(nil, aerr)
	if env.Error == nil {
		t.Fatal("Error = nil, want failure")
	}
	if env.Error.Detail["err_code"] != -3 {
		t.Errorf("Detail[err_code] = %v, want -3", env.Error.Detail["err_code"])
	}
}

func TestNormalize_UndeclaredErrorMessageNotLeaked(t *testing.T) {
	env := normalize(nil, errors.New("secret internal detail"))
	if env.Error.Message == "secret internal detail" {
		t.Error("undeclared error message leaked to the caller")
	}
}

func TestEnvelope_Outcome(t *testing.T) {
	if got := success("x").Outcome(); got != OutcomeSuccess {
		t.Errorf("success Outcome() = %q, want %q", got, OutcomeSuccess)
	}
	if got := failure(FailUnreachable, "gone").Outcome(); got != FailUnreachable {
		t.Errorf("failure Outcome() = %q, want %q", got, FailUnreachable)
	}
}
