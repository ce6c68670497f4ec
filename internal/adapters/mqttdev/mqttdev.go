// Package mqttdev integrates generic MQTT-controlled devices.
//
// Many DIY and retrofit devices (Tasmota, ESPHome, zigbee2mqtt endpoints)
// are driven by publishing JSON to a command topic and observed through a
// retained state topic. This adapter covers that whole family with one
// type: "set" publishes the command parameters, "get" reads the retained
// state.
//
// The adapter shares the gateway's single broker connection; it is only
// offered by discovery when a broker is configured.
package mqttdev

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/undercontrol/gateway/internal/adapter"
	"github.com/undercontrol/gateway/internal/infrastructure/mqtt"
)

// defaultQoS is used when an entry does not override qos.
const defaultQoS = 1

// Broker is the subset of the MQTT client the adapter needs.
// Satisfied by *mqtt.Client; mocked in tests.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Factory is the discoverable generic MQTT device adapter type.
type Factory struct {
	broker Broker
}

// New returns an MQTT device factory bound to the given broker connection.
func New(broker Broker) *Factory {
	return &Factory{broker: broker}
}

// Describe returns the adapter type descriptor.
func (*Factory) Describe() adapter.Descriptor {
	return adapter.Descriptor{
		TypeName:         "mqtt-device",
		Operations:       []string{"set", "get"},
		RequiredSettings: []string{"command_topic"},
		Description:      "Generic MQTT device: JSON commands in, retained state out",
	}
}

// Configure validates topics and builds a device instance.
func (f *Factory) Configure(cfg adapter.Config) (adapter.Instance, error) {
	if f.broker == nil {
		return nil, adapter.NewConfigError("no MQTT broker configured")
	}
	if err := adapter.RequireSettings(cfg.Settings, "command_topic"); err != nil {
		return nil, err
	}
	commandTopic, err := adapter.StringSetting(cfg.Settings, "command_topic", "")
	if err != nil {
		return nil, err
	}
	stateTopic, err := adapter.StringSetting(cfg.Settings, "state_topic", "")
	if err != nil {
		return nil, err
	}
	qos, err := adapter.IntSetting(cfg.Settings, "qos", defaultQoS)
	if err != nil {
		return nil, err
	}
	if qos < 0 || qos > 2 {
		return nil, adapter.NewConfigError("qos must be 0, 1, or 2, got %d", qos)
	}

	return &device{
		broker:       f.broker,
		commandTopic: commandTopic,
		stateTopic:   stateTopic,
		qos:          byte(qos),
	}, nil
}

// device is one configured MQTT device.
type device struct {
	broker       Broker
	commandTopic string
	stateTopic   string
	qos          byte

	// getMu serialises state reads. The broker tracks one handler per
	// topic, so overlapping gets on the same entry would overwrite each
	// other's handler and tear down each other's subscription.
	getMu sync.Mutex
}

// Invoke executes one declared operation against the device topics.
func (d *device) Invoke(ctx context.Context, op string, params adapter.Params) (any, error) {
	switch op {
	case "set":
		return d.set(params)
	case "get":
		return d.get(ctx)
	default:
		return nil, adapter.Errorf(adapter.KindUnsupported, "operation %q not supported", op)
	}
}

// Shutdown releases nothing; the broker connection is owned by the gateway.
func (d *device) Shutdown(context.Context) error { return nil }

// set publishes the command parameters as JSON to the command topic.
func (d *device) set(params adapter.Params) (any, error) {
	if len(params) == 0 {
		return nil, adapter.Errorf(adapter.KindInvalidParams, "set requires at least one parameter")
	}
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, adapter.WrapErr(adapter.KindInvalidParams, err, "encoding command payload")
	}

	if err := d.broker.Publish(d.commandTopic, payload, d.qos, false); err != nil {
		return nil, adapter.WrapErr(adapter.KindUnreachable, err, "publishing to %s", d.commandTopic)
	}

	return map[string]any{"topic": d.commandTopic, "published": true}, nil
}

// get waits for one message on the retained state topic. Brokers deliver
// the retained message immediately after subscribing, so under normal
// conditions this returns fast; the context deadline bounds the wait when
// no retained state exists yet.
func (d *device) get(ctx context.Context) (any, error) {
	if d.stateTopic == "" {
		return nil, adapter.Errorf(adapter.KindUnsupported, "no state_topic configured for this entry")
	}
	if !d.broker.IsConnected() {
		return nil, adapter.Errorf(adapter.KindUnreachable, "mqtt broker not connected")
	}

	d.getMu.Lock()
	defer d.getMu.Unlock()

	received := make(chan []byte, 1)
	err := d.broker.Subscribe(d.stateTopic, d.qos, func(_ string, payload []byte) error {
		select {
		case received <- payload:
		default:
		}
		return nil
	})
	if err != nil {
		return nil, adapter.WrapErr(adapter.KindUnreachable, err, "subscribing to %s", d.stateTopic)
	}
	defer d.broker.Unsubscribe(d.stateTopic) //nolint:errcheck // Best effort cleanup

	select {
	case payload := <-received:
		return decodeState(payload), nil
	case <-ctx.Done():
		return nil, adapter.Errorf(adapter.KindUnreachable, "no state received on %s", d.stateTopic)
	}
}

// decodeState returns the payload as parsed JSON when possible, raw string
// otherwise. Device payloads vary; the gateway passes them through opaque.
func decodeState(payload []byte) any {
	var parsed any
	if err := json.Unmarshal(payload, &parsed); err == nil {
		return parsed
	}
	return string(payload)
}

// Interface check; keeps the adapter honest about the shared client shape.
var _ Broker = (*mqtt.Client)(nil)
