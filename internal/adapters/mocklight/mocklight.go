// Package mocklight provides an in-memory light adapter.
//
// It has no vendor behind it: state lives in the instance. It exists for
// development configs and end-to-end exercising of the dispatch path without
// real hardware.
package mocklight

import (
	"context"
	"sync"

	"github.com/undercontrol/gateway/internal/adapter"
)

// Light state values.
const (
	stateOn  = "on"
	stateOff = "off"
)

// Factory is the discoverable mock light adapter type.
type Factory struct{}

// New returns the mock light factory.
func New() *Factory { return &Factory{} }

// Describe returns the adapter type descriptor.
func (*Factory) Describe() adapter.Descriptor {
	return adapter.Descriptor{
		TypeName:    "mocklight",
		Operations:  []string{"turn_on", "turn_off", "status"},
		Description: "In-memory light for development and testing",
	}
}

// Configure builds a light instance. The optional initial_state setting
// must be "on" or "off"; the default is off.
func (*Factory) Configure(cfg adapter.Config) (adapter.Instance, error) {
	initial, err := adapter.StringSetting(cfg.Settings, "initial_state", stateOff)
	if err != nil {
		return nil, err
	}
	if initial != stateOn && initial != stateOff {
		return nil, adapter.NewConfigError("initial_state must be %q or %q, got %q", stateOn, stateOff, initial)
	}

	return &light{state: initial}, nil
}

// light is one live mock light.
type light struct {
	mu    sync.Mutex
	state string
}

// Invoke executes one operation against the in-memory state.
func (l *light) Invoke(_ context.Context, op string, _ adapter.Params) (any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch op {
	case "turn_on":
		l.state = stateOn
	case "turn_off":
		l.state = stateOff
	case "status":
		// read-only
	default:
		return nil, adapter.Errorf(adapter.KindUnsupported, "operation %q not supported", op)
	}

	return map[string]any{"state": l.state}, nil
}

// Shutdown releases nothing; the light holds no external resources.
func (l *light) Shutdown(context.Context) error { return nil }
