// Package adapters assembles the built-in adapter set for discovery.
//
// This is the gateway's "known location" for adapter implementations: every
// compiled-in integration registers its factory here, and discovery checks
// each one against the contract at startup. Adding a vendor integration
// means writing a package under internal/adapters/ and listing its factory
// in Builtin.
package adapters

import (
	"github.com/undercontrol/gateway/internal/adapter"
	"github.com/undercontrol/gateway/internal/adapters/kasa"
	"github.com/undercontrol/gateway/internal/adapters/lgtv"
	"github.com/undercontrol/gateway/internal/adapters/mocklight"
	"github.com/undercontrol/gateway/internal/adapters/mqttdev"
)

// Deps carries shared infrastructure adapters may depend on.
type Deps struct {
	// Broker is the gateway's MQTT connection, nil when no broker is
	// configured. The MQTT device adapter is only offered when present.
	Broker mqttdev.Broker
}

// Builtin returns the factories of all compiled-in adapter types.
func Builtin(deps Deps) []adapter.Factory {
	factories := []adapter.Factory{
		mocklight.New(),
		kasa.New(),
		lgtv.New(),
	}
	if deps.Broker != nil {
		factories = append(factories, mqttdev.New(deps.Broker))
	}
	return factories
}
