// Package lgtv integrates LG WebOS televisions.
//
// WebOS TVs expose a websocket SSAP endpoint on port 3000. A client must
// register before issuing requests; registration is accepted immediately
// when a previously granted client key is presented, otherwise the TV shows
// an on-screen pairing prompt. The granted key is returned in the invoke
// payload so an operator can persist it into the entry settings.
//
// One websocket session serves all operations for an entry, so this adapter
// declares single-concurrency and the router serialises invocations.
package lgtv

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/undercontrol/gateway/internal/adapter"
)

// Defaults for TV communication.
const (
	defaultPort    = 3000
	defaultTimeout = 10 * time.Second
)

// SSAP endpoints for the declared operations.
const (
	uriSystemInfo  = "ssap://system/getSystemInfo"
	uriTurnOff     = "ssap://system/turnOff"
	uriVolumeUp    = "ssap://audio/volumeUp"
	uriVolumeDown  = "ssap://audio/volumeDown"
	uriSetVolume   = "ssap://audio/setVolume"
	uriSetMute     = "ssap://audio/setMute"
	uriCreateToast = "ssap://system.notifications/createToast"
)

// Factory is the discoverable LG WebOS adapter type.
type Factory struct{}

// New returns the LG WebOS factory.
func New() *Factory { return &Factory{} }

// Describe returns the adapter type descriptor.
func (*Factory) Describe() adapter.Descriptor {
	return adapter.Descriptor{
		TypeName: "lgtv",
		Operations: []string{
			"status", "power_off", "volume_up", "volume_down",
			"set_volume", "mute", "notify",
		},
		RequiredSettings: []string{"host"},
		Description:      "LG WebOS televisions over SSAP websocket",
	}
}

// Configure validates the entry settings and builds a TV instance.
// The websocket is dialled lazily on first invoke, never here.
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
	clientKey, err := adapter.StringSetting(cfg.Settings, "client_key", "")
	if err != nil {
		return nil, err
	}
	timeoutSecs, err := adapter.IntSetting(cfg.Settings, "timeout_seconds", int(defaultTimeout/time.Second))
	if err != nil {
		return nil, err
	}
	if timeoutSecs < 1 {
		return nil, adapter.NewConfigError("timeout_seconds must be at least 1, got %d", timeoutSecs)
	}

	return &tv{
		addr:      net.JoinHostPort(host, fmt.Sprint(port)),
		clientKey: clientKey,
		timeout:   time.Duration(timeoutSecs) * time.Second,
	}, nil
}

// ssapMessage is the message shape exchanged over the SSAP websocket.
type ssapMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	URI     string          `json:"uri,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// tv is one configured WebOS television. The router serialises invokes
// via SerialInvoker, but Shutdown can overlap a straggler invoke that
// outlived its caller, so the session pointer is guarded by mu.
type tv struct {
	addr      string
	clientKey string
	timeout   time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	msgID  atomic.Uint64
}

// InvokeSerially declares that invocations to one TV must not overlap:
// the SSAP session is a single ordered request/response stream.
func (*tv) InvokeSerially() bool { return true }

// Invoke executes one declared operation against the TV.
func (t *tv) Invoke(ctx context.Context, op string, params adapter.Params) (any, error) {
	switch op {
	case "status":
		return t.request(ctx, uriSystemInfo, nil)
	case "power_off":
		return t.request(ctx, uriTurnOff, nil)
	case "volume_up":
		return t.request(ctx, uriVolumeUp, nil)
	case "volume_down":
		return t.request(ctx, uriVolumeDown, nil)
	case "set_volume":
		volume, err := intParam(params, "volume")
		if err != nil {
			return nil, err
		}
		if volume < 0 || volume > 100 {
			return nil, adapter.Errorf(adapter.KindInvalidParams, "volume must be 0-100, got %d", volume)
		}
		return t.request(ctx, uriSetVolume, map[string]any{"volume": volume})
	case "mute":
		muted, err := boolParam(params, "mute")
		if err != nil {
			return nil, err
		}
		return t.request(ctx, uriSetMute, map[string]any{"mute": muted})
	case "notify":
		message, ok := params["message"].(string)
		if !ok || message == "" {
			return nil, adapter.Errorf(adapter.KindInvalidParams, "parameter \"message\" must be a non-empty string")
		}
		return t.request(ctx, uriCreateToast, map[string]any{"message": message})
	default:
		return nil, adapter.Errorf(adapter.KindUnsupported, "operation %q not supported", op)
	}
}

// Shutdown closes the websocket session if one is open and prevents any
// straggler invoke from dialling a new one. Closing the conn unblocks a
// read that is still in flight; that invoke fails as unreachable.
func (t *tv) Shutdown(context.Context) error {
	t.mu.Lock()
	t.closed = true
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// request ensures a registered session, sends one SSAP request, and waits
// for its response. The conn is carried as a local so a concurrent
// Shutdown can only fail the pending read, never leave this call holding
// a half-cleared session.
func (t *tv) request(ctx context.Context, uri string, payload map[string]any) (any, error) {
	conn, err := t.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	id := fmt.Sprintf("req_%d", t.msgID.Add(1))
	msg := map[string]any{"type": "request", "id": id, "uri": uri}
	if payload != nil {
		msg["payload"] = payload
	}

	if err := t.writeJSON(ctx, conn, msg); err != nil {
		t.dropSession(conn)
		return nil, adapter.WrapErr(adapter.KindUnreachable, err, "tv %s", t.addr)
	}

	for {
		var resp ssapMessage
		if err := t.readJSON(ctx, conn, &resp); err != nil {
			t.dropSession(conn)
			return nil, adapter.WrapErr(adapter.KindUnreachable, err, "tv %s", t.addr)
		}
		if resp.ID != id {
			// Unsolicited message (subscription echo, pairing chatter);
			// skip and keep waiting for our response.
			continue
		}

		switch resp.Type {
		case "response":
			var body map[string]any
			if len(resp.Payload) > 0 {
				if err := json.Unmarshal(resp.Payload, &body); err != nil {
					return nil, adapter.WrapErr(adapter.KindVendorError, err, "malformed tv response")
				}
			}
			if ret, ok := body["returnValue"].(bool); ok && !ret {
				aerr := adapter.Errorf(adapter.KindVendorError, "tv rejected %s", uri)
				aerr.Detail = body
				return nil, aerr
			}
			return body, nil
		case "error":
			return nil, adapter.Errorf(adapter.KindVendorError, "tv error: %s", resp.Error)
		default:
			continue
		}
	}
}

// ensureSession returns the live session, dialling and registering a new
// one if needed. After Shutdown it refuses to re-dial.
func (t *tv) ensureSession(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, adapter.Errorf(adapter.KindUnreachable, "tv %s: instance shut down", t.addr)
	}
	if t.conn != nil {
		conn := t.conn
		t.mu.Unlock()
		return conn, nil
	}
	t.mu.Unlock()

	u := url.URL{Scheme: "ws", Host: t.addr}
	dialer := websocket.Dialer{HandshakeTimeout: t.timeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, adapter.WrapErr(adapter.KindUnreachable, err, "dialing tv %s", t.addr)
	}

	if err := t.register(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = conn.Close()
		return nil, adapter.Errorf(adapter.KindUnreachable, "tv %s: instance shut down", t.addr)
	}
	t.conn = conn
	t.mu.Unlock()
	return conn, nil
}

// register performs the SSAP pairing handshake.
//
// With a stored client key the TV answers "registered" immediately. Without
// one the TV shows a pairing prompt; if the user does not accept within the
// call timeout the handshake fails as unauthorized.
func (t *tv) register(ctx context.Context, conn *websocket.Conn) error {
	payload := map[string]any{
		"pairingType": "PROMPT",
		"manifest": map[string]any{
			"manifestVersion": 1,
			"permissions": []string{
				"CONTROL_AUDIO",
				"CONTROL_POWER",
				"CREATE_TOAST_PERMISSION",
				"READ_TV_CURRENT_CHANNEL",
			},
		},
	}
	if t.clientKey != "" {
		payload["client-key"] = t.clientKey
	}

	msg := map[string]any{"type": "register", "id": "register_0", "payload": payload}
	if err := t.writeJSON(ctx, conn, msg); err != nil {
		return adapter.WrapErr(adapter.KindUnreachable, err, "tv %s", t.addr)
	}

	for {
		var resp ssapMessage
		if err := t.readJSON(ctx, conn, &resp); err != nil {
			return adapter.WrapErr(adapter.KindUnauthorized, err, "pairing with tv %s not completed", t.addr)
		}

		switch resp.Type {
		case "registered":
			// Capture the granted key so callers can read it from status
			// payloads and persist it into the entry settings.
			var body struct {
				ClientKey string `json:"client-key"`
			}
			if err := json.Unmarshal(resp.Payload, &body); err == nil && body.ClientKey != "" {
				t.clientKey = body.ClientKey
			}
			return nil
		case "error":
			return adapter.Errorf(adapter.KindUnauthorized, "tv refused registration: %s", resp.Error)
		default:
			// "response" with pairingType PROMPT: waiting for the user to
			// accept on screen.
			continue
		}
	}
}

// dropSession discards a websocket after a failure. Only the current
// session is cleared; a conn already retired by Shutdown is left alone.
func (t *tv) dropSession(conn *websocket.Conn) {
	_ = conn.Close()
	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()
}

// writeJSON sends one message with the context deadline applied.
func (t *tv) writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(deadlineFrom(ctx, t.timeout))
	return conn.WriteJSON(v)
}

// readJSON reads one message with the context deadline applied.
func (t *tv) readJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	_ = conn.SetReadDeadline(deadlineFrom(ctx, t.timeout))
	return conn.ReadJSON(v)
}

// deadlineFrom picks the earlier of the context deadline and now+fallback.
func deadlineFrom(ctx context.Context, fallback time.Duration) time.Time {
	deadline := time.Now().Add(fallback)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return deadline
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

// boolParam extracts a required boolean parameter.
func boolParam(params adapter.Params, key string) (bool, error) {
	v, ok := params[key]
	if !ok {
		return false, adapter.Errorf(adapter.KindInvalidParams, "missing parameter %q", key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, adapter.Errorf(adapter.KindInvalidParams, "parameter %q must be a boolean, got %T", key, v)
	}
	return b, nil
}
