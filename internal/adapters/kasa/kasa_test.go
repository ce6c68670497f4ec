package kasa

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"strconv"
	"testing"

	"github.com/undercontrol/gateway/internal/adapter"
)

func TestScrambleRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte(`{"system":{"get_sysinfo":{}}}`),
		[]byte(""),
		[]byte("a"),
		bytes.Repeat([]byte{0x00, 0xff}, 512),
	}

	for _, plain := range payloads {
		if got := unscramble(scramble(plain)); !bytes.Equal(got, plain) {
			t.Errorf("unscramble(scramble(%q)) = %q", plain, got)
		}
	}
}

func TestScramble_KnownVector(t *testing.T) {
	// First byte XORs with the fixed initial key.
	got := scramble([]byte{0x00})
	if got[0] != initialKey {
		t.Errorf("scramble first byte = %#x, want %#x", got[0], byte(initialKey))
	}
}

// fakeDevice runs a one-shot TCP listener speaking the scrambled frame
// protocol. respond maps the decoded request to a response body.
func fakeDevice(t *testing.T, respond func(request map[string]any) any) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		var header [4]byte
		if _, err := io.ReadFull(conn, header[:]); err != nil {
			return
		}
		body := make([]byte, binary.BigEndian.Uint32(header[:]))
		if _, err := io.ReadFull(conn, body); err != nil {
			return
		}

		var request map[string]any
		if err := json.Unmarshal(unscramble(body), &request); err != nil {
			return
		}

		raw, err := json.Marshal(respond(request))
		if err != nil {
			return
		}
		frame := make([]byte, 4+len(raw))
		binary.BigEndian.PutUint32(frame, uint32(len(raw)))
		copy(frame[4:], scramble(raw))
		_, _ = conn.Write(frame)
	}()

	return ln.Addr().String()
}

func deviceAt(t *testing.T, addr string) adapter.Instance {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("splitting address: %v", err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		t.Fatalf("parsing port: %v", err)
	}
	inst, err := New().Configure(adapter.Config{
		EntryID: "test-plug",
		Type:    "kasa",
		Settings: adapter.Settings{
			"host":            host,
			"port":            portNum,
			"timeout_seconds": 1,
		},
	})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	return inst
}

func TestConfigure_Validation(t *testing.T) {
	tests := []struct {
		name     string
		settings adapter.Settings
		wantErr  bool
	}{
		{name: "valid", settings: adapter.Settings{"host": "10.0.0.5"}},
		{name: "missing host", settings: adapter.Settings{}, wantErr: true},
		{name: "bad port", settings: adapter.Settings{"host": "10.0.0.5", "port": 99999}, wantErr: true},
		{name: "bad timeout", settings: adapter.Settings{"host": "10.0.0.5", "timeout_seconds": 0}, wantErr: true},
		{name: "host wrong type", settings: adapter.Settings{"host": 5}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Configure(adapter.Config{Settings: tt.settings})
			if (err != nil) != tt.wantErr {
				t.Errorf("Configure() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInvoke_Status(t *testing.T) {
	addr := fakeDevice(t, func(request map[string]any) any {
		if _, ok := request["system"].(map[string]any)["get_sysinfo"]; !ok {
			t.Error("request did not target system.get_sysinfo")
		}
		return map[string]any{
			"system": map[string]any{
				"get_sysinfo": map[string]any{
					"alias":       "Lounge Plug",
					"relay_state": 1,
					"err_code":    0,
				},
			},
		}
	})

	payload, err := deviceAt(t, addr).Invoke(context.Background(), "status", nil)
	if err != nil {
		t.Fatalf("Invoke(status) error = %v", err)
	}
	result, ok := payload.(map[string]any)
	if !ok {
		t.Fatalf("payload type = %T, want map", payload)
	}
	if result["alias"] != "Lounge Plug" {
		t.Errorf("alias = %v, want Lounge Plug", result["alias"])
	}
}

func TestInvoke_VendorErrorCode(t *testing.T) {
	addr := fakeDevice(t, func(map[string]any) any {
		return map[string]any{
			"system": map[string]any{
				"set_relay_state": map[string]any{
					"err_code": -3,
					"err_msg":  "invalid argument",
				},
			},
		}
	})

	_, err := deviceAt(t, addr).Invoke(context.Background(), "turn_on", nil)
	aerr, ok := adapter.AsError(err)
	if !ok {
		t.Fatalf("error type = %T, want *adapter.Error", err)
	}
	if aerr.Kind != adapter.KindVendorError {
		t.Errorf("Kind = %q, want %q", aerr.Kind, adapter.KindVendorError)
	}
	if aerr.Detail["err_code"] != -3 {
		t.Errorf("Detail[err_code] = %v, want -3", aerr.Detail["err_code"])
	}
	if aerr.Detail["err_msg"] != "invalid argument" {
		t.Errorf("Detail[err_msg] = %v, want the device message", aerr.Detail["err_msg"])
	}
}

func TestInvoke_Unreachable(t *testing.T) {
	// Grab a port and close it again so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = deviceAt(t, addr).Invoke(context.Background(), "status", nil)
	aerr, ok := adapter.AsError(err)
	if !ok {
		t.Fatalf("error type = %T, want *adapter.Error", err)
	}
	if aerr.Kind != adapter.KindUnreachable {
		t.Errorf("Kind = %q, want %q", aerr.Kind, adapter.KindUnreachable)
	}
}

func TestInvoke_ParamValidation(t *testing.T) {
	// No server needed: validation fails before any dial.
	inst, err := New().Configure(adapter.Config{
		Settings: adapter.Settings{"host": "10.255.255.1"},
	})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	tests := []struct {
		name   string
		op     string
		params adapter.Params
	}{
		{name: "missing brightness", op: "set_brightness", params: nil},
		{name: "brightness out of range", op: "set_brightness", params: adapter.Params{"brightness": 150}},
		{name: "brightness wrong type", op: "set_brightness", params: adapter.Params{"brightness": "high"}},
		{name: "hue out of range", op: "set_colour", params: adapter.Params{"hue": 400, "saturation": 50, "value": 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := inst.Invoke(context.Background(), tt.op, tt.params)
			aerr, ok := adapter.AsError(err)
			if !ok {
				t.Fatalf("error type = %T, want *adapter.Error", err)
			}
			if aerr.Kind != adapter.KindInvalidParams {
				t.Errorf("Kind = %q, want %q", aerr.Kind, adapter.KindInvalidParams)
			}
		})
	}
}
