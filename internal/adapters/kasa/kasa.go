// Package kasa integrates TP-Link Kasa smart plugs and bulbs.
//
// Kasa devices speak a JSON protocol over TCP port 9999, lightly scrambled
// with an XOR autokey (see protocol.go). Each invoke opens one connection,
// performs one exchange, and closes; there is no session to keep alive.
package kasa

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/undercontrol/gateway/internal/adapter"
)

// Defaults for device communication.
const (
	defaultPort    = 9999
	defaultTimeout = 5 * time.Second
)

// Factory is the discoverable Kasa adapter type.
type Factory struct{}

// New returns the Kasa factory.
func New() *Factory { return &Factory{} }

// Describe returns the adapter type descriptor.
func (*Factory) Describe() adapter.Descriptor {
	return adapter.Descriptor{
		TypeName: "kasa",
		Operations: []string{
			"status", "turn_on", "turn_off", "set_brightness", "set_colour",
		},
		RequiredSettings: []string{"host"},
		Description:      "TP-Link Kasa smart plugs and bulbs",
	}
}

// Configure validates the entry settings and builds a device instance.
// No connection is attempted here; an unreachable device surfaces from
// Invoke, not from startup.
func (*Factory) Configure(cfg adapter.Config) (adapter.Instance, error) {
	if err := adapter.RequireSettings(cfg.Settings, "host"); err != nil {
		return nil, err
	}
	host, err := adapter.StringSetting(cfg.Settings, "host", "")
	if err != nil {
		return nil, err
	}
	port, err := adapter.IntSetting(cfg.Settings, "port", defaultPort)
	if err != nil {
		return nil, err
	}
	if port < 1 || port > 65535 {
		return nil, adapter.NewConfigError("port must be between 1 and 65535, got %d", port)
	}
	timeoutSecs, err := adapter.IntSetting(cfg.Settings, "timeout_seconds", int(defaultTimeout/time.Second))
	if err != nil {
		return nil, err
	}
	if timeoutSecs < 1 {
		return nil, adapter.NewConfigError("timeout_seconds must be at least 1, got %d", timeoutSecs)
	}

	return &device{
		addr:    net.JoinHostPort(host, fmt.Sprint(port)),
		timeout: time.Duration(timeoutSecs) * time.Second,
	}, nil
}

// device is one configured Kasa device.
type device struct {
	addr    string
	timeout time.Duration
}

// Invoke executes one declared operation against the device.
func (d *device) Invoke(ctx context.Context, op string, params adapter.Params) (any, error) {
	switch op {
	case "status":
		return d.exchange(ctx, "system", "get_sysinfo", map[string]any{})
	case "turn_on":
		return d.exchange(ctx, "system", "set_relay_state", map[string]any{"state": 1})
	case "turn_off":
		return d.exchange(ctx, "system", "set_relay_state", map[string]any{"state": 0})
	case "set_brightness":
		return d.setBrightness(ctx, params)
	case "set_colour":
		return d.setColour(ctx, params)
	default:
		return nil, adapter.Errorf(adapter.KindUnsupported, "operation %q not supported", op)
	}
}

// Shutdown releases nothing; connections are per-invoke.
func (d *device) Shutdown(context.Context) error { return nil }

// setBrightness handles the set_brightness operation.
// Params: brightness (0-100).
func (d *device) setBrightness(ctx context.Context, params adapter.Params) (any, error) {
	level, err := intParam(params, "brightness")
	if err != nil {
		return nil, err
	}
	if level < 0 || level > 100 {
		return nil, adapter.Errorf(adapter.KindInvalidParams, "brightness must be 0-100, got %d", level)
	}

	return d.exchange(ctx, "smartlife.iot.smartbulb.lightingservice", "transition_light_state", map[string]any{
		"on_off":     1,
		"brightness": level,
	})
}

// setColour handles the set_colour operation.
// Params: hue (0-360), saturation (0-100), value (0-100).
func (d *device) setColour(ctx context.Context, params adapter.Params) (any, error) {
	hue, err := intParam(params, "hue")
	if err != nil {
		return nil, err
	}
	sat, err := intParam(params, "saturation")
	if err != nil {
		return nil, err
	}
	val, err := intParam(params, "value")
	if err != nil {
		return nil, err
	}
	if hue < 0 || hue > 360 {
		return nil, adapter.Errorf(adapter.KindInvalidParams, "hue must be 0-360, got %d", hue)
	}
	if sat < 0 || sat > 100 || val < 0 || val > 100 {
		return nil, adapter.Errorf(adapter.KindInvalidParams, "saturation and value must be 0-100")
	}

	return d.exchange(ctx, "smartlife.iot.smartbulb.lightingservice", "transition_light_state", map[string]any{
		"on_off":     1,
		"hue":        hue,
		"saturation": sat,
		"brightness": val,
		"color_temp": 0,
	})
}

// exchange performs one request/response cycle and normalises the result.
// The request shape is {"<target>":{"<command>":{...}}}; the response echoes
// the same nesting with an err_code field.
func (d *device) exchange(ctx context.Context, target, command string, args map[string]any) (any, error) {
	request, err := json.Marshal(map[string]any{target: map[string]any{command: args}})
	if err != nil {
		return nil, adapter.WrapErr(adapter.KindInvalidParams, err, "encoding request")
	}

	raw, err := roundTrip(ctx, d.addr, d.timeout, request)
	if err != nil {
		return nil, adapter.WrapErr(adapter.KindUnreachable, err, "device %s", d.addr)
	}

	var response map[string]map[string]map[string]any
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, adapter.WrapErr(adapter.KindVendorError, err, "malformed device response")
	}

	result, ok := response[target][command]
	if !ok {
		return nil, adapter.Errorf(adapter.KindVendorError, "response missing %s.%s", target, command)
	}

	if code, found := result["err_code"]; found {
		if n, isNum := code.(float64); isNum && n != 0 {
			aerr := adapter.Errorf(adapter.KindVendorError, "device reported error code %d", int(n))
			aerr.Detail = map[string]any{"err_code": int(n)}
			if msg, hasMsg := result["err_msg"].(string); hasMsg {
				aerr.Detail["err_msg"] = msg
			}
			return nil, aerr
		}
	}

	return result, nil
}

// intParam extracts a required integer parameter.
func intParam(params adapter.Params, key string) (int, error) {
	v, ok := params[key]
	if !ok {
		return 0, adapter.Errorf(adapter.KindInvalidParams, "missing parameter %q", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	}
	return 0, adapter.Errorf(adapter.KindInvalidParams, "parameter %q must be an integer, got %T", key, v)
}
