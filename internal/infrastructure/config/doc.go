// Package config loads and validates the gateway configuration.
//
// Configuration comes from a single YAML file, layered as defaults, then
// file values, then UNDERCONTROL_* environment variable overrides. The
// entries section is the ordered list of configured integration entries the
// registry consumes; this package checks its shape but leaves id uniqueness
// and settings semantics to the registry, which validates against the
// adapter catalog.
package config
