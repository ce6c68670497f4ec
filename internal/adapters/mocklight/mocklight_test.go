package mocklight

import (
	"context"
	"testing"

	"github.com/undercontrol/gateway/internal/adapter"
)

func configure(t *testing.T, settings adapter.Settings) adapter.Instance {
	t.Helper()
	inst, err := New().Configure(adapter.Config{
		EntryID:  "test-light",
		Type:     "mocklight",
		Settings: settings,
	})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	return inst
}

func stateOf(t *testing.T, payload any) string {
	t.Helper()
	m, ok := payload.(map[string]any)
	if !ok {
		t.Fatalf("payload type = %T, want map", payload)
	}
	s, ok := m["state"].(string)
	if !ok {
		t.Fatalf("payload %v has no state string", m)
	}
	return s
}

func TestDescribe(t *testing.T) {
	desc := New().Describe()
	if desc.TypeName != "mocklight" {
		t.Errorf("TypeName = %q, want %q", desc.TypeName, "mocklight")
	}
	for _, op := range []string{"turn_on", "turn_off", "status"} {
		if !desc.Supports(op) {
			t.Errorf("Supports(%s) = false, want true", op)
		}
	}
}

func TestConfigure_InitialState(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults to off", func(t *testing.T) {
		inst := configure(t, nil)
		payload, err := inst.Invoke(ctx, "status", nil)
		if err != nil {
			t.Fatalf("Invoke(status) error = %v", err)
		}
		if got := stateOf(t, payload); got != "off" {
			t.Errorf("state = %q, want %q", got, "off")
		}
	})

	t.Run("honours initial_state", func(t *testing.T) {
		inst := configure(t, adapter.Settings{"initial_state": "on"})
		payload, err := inst.Invoke(ctx, "status", nil)
		if err != nil {
			t.Fatalf("Invoke(status) error = %v", err)
		}
		if got := stateOf(t, payload); got != "on" {
			t.Errorf("state = %q, want %q", got, "on")
		}
	})

	t.Run("rejects unknown state", func(t *testing.T) {
		_, err := New().Configure(adapter.Config{
			Settings: adapter.Settings{"initial_state": "dim"},
		})
		if err == nil {
			t.Fatal("Configure() error = nil, want config error")
		}
	})
}

func TestInvoke_Transitions(t *testing.T) {
	ctx := context.Background()
	inst := configure(t, nil)

	payload, err := inst.Invoke(ctx, "turn_on", nil)
	if err != nil {
		t.Fatalf("Invoke(turn_on) error = %v", err)
	}
	if got := stateOf(t, payload); got != "on" {
		t.Errorf("state after turn_on = %q, want %q", got, "on")
	}

	payload, err = inst.Invoke(ctx, "turn_off", nil)
	if err != nil {
		t.Fatalf("Invoke(turn_off) error = %v", err)
	}
	if got := stateOf(t, payload); got != "off" {
		t.Errorf("state after turn_off = %q, want %q", got, "off")
	}
}

func TestInvoke_UnknownOperation(t *testing.T) {
	inst := configure(t, nil)

	_, err := inst.Invoke(context.Background(), "dim", nil)
	aerr, ok := adapter.AsError(err)
	if !ok {
		t.Fatalf("error type = %T, want *adapter.Error", err)
	}
	if aerr.Kind != adapter.KindUnsupported {
		t.Errorf("Kind = %q, want %q", aerr.Kind, adapter.KindUnsupported)
	}
}
