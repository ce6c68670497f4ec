package registry

import (
	"errors"
	"strings"
)

// Domain errors for the registry package.
var (
	// ErrEntryNotFound is returned when an entry id is not configured.
	ErrEntryNotFound = errors.New("registry: entry not found")

	// ErrNotLoaded is returned when the registry is used before Load.
	ErrNotLoaded = errors.New("registry: not loaded")
)

// ConfigError reports every problem found in one load or reload attempt.
//
// Validation is collect-all rather than fail-on-first so an operator sees
// the complete list of misconfigurations in a single pass.
type ConfigError struct {
	Problems []string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "registry: invalid configuration: " + strings.Join(e.Problems, "; ")
}
