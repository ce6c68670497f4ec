// Package adapter defines the contract every vendor integration must satisfy.
//
// An adapter integrates one third-party home-control API (TP-Link Kasa,
// LG WebOS, a generic MQTT device, ...) behind a uniform capability surface.
// The rest of the gateway never touches vendor protocols directly; it only
// speaks to adapters through the types in this package.
//
// # Key Types
//
//   - Descriptor: immutable description of an adapter type (name, operations,
//     required settings). Built once at discovery time.
//   - Factory: a discoverable adapter type. Describes itself and configures
//     live instances from entry configuration.
//   - Instance: a live, stateful adapter bound to one configured entry. Owns
//     any vendor connection or session state.
//   - Error: the fixed taxonomy vendor failures are normalised into at the
//     contract boundary. The router and the HTTP layer never need per-vendor
//     knowledge.
//
// # Lifecycle
//
//	factory.Describe()              // discovery, no side effects
//	inst, err := factory.Configure(cfg) // validation + construction only, no I/O
//	inst.Invoke(ctx, op, params)    // vendor I/O happens here
//	inst.Shutdown(ctx)              // release connections/sessions
//
// Configure must be side-effect-free beyond local validation and object
// construction, so startup stays robust to transient vendor outages.
//
// # Concurrency
//
// Instances may be invoked concurrently unless they implement SerialInvoker,
// in which case the router serialises calls to that one instance.
package adapter
