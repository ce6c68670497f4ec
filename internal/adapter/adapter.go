package adapter

import "context"

// Settings holds the type-specific configuration values for one entry.
// Values come straight from the YAML config and are read-only to adapters.
type Settings map[string]any

// Params holds the operation parameters supplied with a command.
type Params map[string]any

// Config is one configuration block for a configured integration entry.
//
// EntryID is unique across the registry and stable for the process lifetime.
// Type names the adapter type that should serve this entry.
type Config struct {
	EntryID  string   `json:"entry_id" yaml:"id"`
	Type     string   `json:"type" yaml:"type"`
	Settings Settings `json:"settings,omitempty" yaml:"settings"`
}

// Descriptor describes a discoverable adapter type.
//
// It is created once at discovery time and never modified afterwards.
// Operations is the complete set of operation names instances of this type
// accept; the router rejects anything else without invoking the adapter.
type Descriptor struct {
	// TypeName is the stable, unique name of the adapter type (e.g. "kasa").
	TypeName string `json:"type"`

	// Operations lists every operation instances of this type support.
	Operations []string `json:"operations"`

	// RequiredSettings names the settings keys Configure insists on.
	// Informational; Configure remains the authority.
	RequiredSettings []string `json:"required_settings,omitempty"`

	// Description is a short human-readable summary for the catalog API.
	Description string `json:"description,omitempty"`
}

// Supports reports whether the descriptor declares the given operation.
func (d Descriptor) Supports(op string) bool {
	for _, o := range d.Operations {
		if o == op {
			return true
		}
	}
	return false
}

// Factory is a discoverable adapter type: it describes itself and builds
// live instances from entry configuration.
type Factory interface {
	// Describe returns the immutable descriptor for this adapter type.
	// It must be cheap, deterministic, and free of side effects.
	Describe() Descriptor

	// Configure validates cfg.Settings and constructs a live instance bound
	// to that entry. It must not perform vendor I/O; reachability problems
	// surface later, from Invoke, as Kind Unreachable.
	//
	// Validation failures are reported as *ConfigError.
	Configure(cfg Config) (Instance, error)
}

// Instance is a live adapter bound to one configured entry. It is the sole
// owner of any vendor connection or session state it holds.
type Instance interface {
	// Invoke executes one declared operation against the vendor and returns
	// the raw vendor result. Failures must be *Error values; anything else
	// is treated as a contract violation by the router.
	//
	// Invoke must honour ctx cancellation on a best-effort basis: the caller
	// stops waiting at the deadline whether or not the vendor side aborted.
	Invoke(ctx context.Context, op string, params Params) (any, error)

	// Shutdown releases any held resource (connection, session token).
	// It must be safe to call even if Configure partially failed, and safe
	// to call more than once.
	Shutdown(ctx context.Context) error
}

// SerialInvoker is an optional marker for instances that are not safe for
// concurrent Invoke calls. The router serialises invocations to such an
// instance without blocking unrelated instances.
type SerialInvoker interface {
	// InvokeSerially reports whether calls to this instance must not overlap.
	InvokeSerially() bool
}

// InvokesSerially reports whether inst has declared single-concurrency.
func InvokesSerially(inst Instance) bool {
	s, ok := inst.(SerialInvoker)
	return ok && s.InvokeSerially()
}

// RequireSettings checks that every named key is present in s. It returns a
// *ConfigError listing all missing keys, or nil when none are missing.
//
// Adapters typically call this first in Configure, then validate types of
// individual values.
func RequireSettings(s Settings, keys ...string) error {
	var missing []string
	for _, k := range keys {
		if _, ok := s[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return NewConfigError("missing required settings: %v", missing)
	}
	return nil
}

// StringSetting returns the string value for key, or def when absent.
// A present value of the wrong type yields a *ConfigError.
func StringSetting(s Settings, key, def string) (string, error) {
	v, ok := s[key]
	if !ok {
		return def, nil
	}
	str, ok := v.(string)
	if !ok {
		return "", NewConfigError("setting %q must be a string, got %T", key, v)
	}
	return str, nil
}

// IntSetting returns the integer value for key, or def when absent.
// YAML decodes whole numbers as int; JSON as float64. Both are accepted.
func IntSetting(s Settings, key string, def int) (int, error) {
	v, ok := s[key]
	if !ok {
		return def, nil
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
	return 0, NewConfigError("setting %q must be an integer, got %T", key, v)
}
