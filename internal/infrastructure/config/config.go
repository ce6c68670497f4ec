package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Under Control gateway.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	API       APIConfig       `yaml:"api"`
	Router    RouterConfig    `yaml:"router"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Audit     AuditConfig     `yaml:"audit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
	Entries   []EntryConfig   `yaml:"entries"`
}

// GatewayConfig contains gateway-wide identification settings.
type GatewayConfig struct {
	Name string `yaml:"name"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// RouterConfig contains command routing settings.
type RouterConfig struct {
	// InvokeTimeout is the per-call adapter invocation timeout in seconds.
	// It applies to all adapters; a timed-out call is reported as unreachable.
	InvokeTimeout int `yaml:"invoke_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
// The broker is optional; when no host is configured the generic MQTT
// device adapter is simply not offered by discovery.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// Enabled reports whether a broker has been configured at all.
func (c MQTTBrokerConfig) Enabled() bool { return c.Host != "" }

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// AuditConfig contains command audit trail settings.
type AuditConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// TelemetryConfig contains InfluxDB command telemetry settings.
type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// EntryConfig is one configured integration entry: a stable id, the adapter
// type serving it, and arbitrary type-specific settings. File order is
// preserved. Uniqueness and settings validation belong to the registry,
// which reports them collect-all against the adapter catalog.
type EntryConfig struct {
	ID       string         `yaml:"id"`
	Type     string         `yaml:"type"`
	Settings map[string]any `yaml:"settings"`
}

// Load reads configuration from a YAML file and applies environment variable
// overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: UNDERCONTROL_SECTION_KEY
// For example: UNDERCONTROL_API_PORT, UNDERCONTROL_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Name: "undercontrol",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 7654,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Router: RouterConfig{
			InvokeTimeout: 10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Port:     1883,
				ClientID: "undercontrol-gateway",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Audit: AuditConfig{
			Database: DatabaseConfig{
				Path:        "./data/undercontrol.db",
				WALMode:     true,
				BusyTimeout: 5,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: UNDERCONTROL_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// API
	if v := os.Getenv("UNDERCONTROL_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("UNDERCONTROL_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// MQTT
	if v := os.Getenv("UNDERCONTROL_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("UNDERCONTROL_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("UNDERCONTROL_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Audit database
	if v := os.Getenv("UNDERCONTROL_AUDIT_DATABASE_PATH"); v != "" {
		cfg.Audit.Database.Path = v
	}

	// Telemetry token (secrets belong in the environment, not the file)
	if v := os.Getenv("UNDERCONTROL_TELEMETRY_TOKEN"); v != "" {
		cfg.Telemetry.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Validation is collect-all: every problem is reported in one pass so an
// operator never fixes errors one restart at a time.
func (c *Config) Validate() error {
	var errs []string

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled {
		if c.API.TLS.CertFile == "" {
			errs = append(errs, "api.tls.cert_file is required when TLS is enabled")
		}
		if c.API.TLS.KeyFile == "" {
			errs = append(errs, "api.tls.key_file is required when TLS is enabled")
		}
	}

	// Router validation
	if c.Router.InvokeTimeout < 1 {
		errs = append(errs, "router.invoke_timeout must be at least 1 second")
	}

	// MQTT validation (only when a broker is configured)
	if c.MQTT.Broker.Enabled() {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
	}

	// Audit validation
	if c.Audit.Enabled && c.Audit.Database.Path == "" {
		errs = append(errs, "audit.database.path is required when audit is enabled")
	}

	// Telemetry validation
	if c.Telemetry.Enabled {
		if c.Telemetry.URL == "" {
			errs = append(errs, "telemetry.url is required when telemetry is enabled")
		}
		if c.Telemetry.Bucket == "" {
			errs = append(errs, "telemetry.bucket is required when telemetry is enabled")
		}
	}

	// Entry validation is shallow here: ids and types present.
	for i, e := range c.Entries {
		if e.ID == "" {
			errs = append(errs, fmt.Sprintf("entries[%d].id is required", i))
		}
		if e.Type == "" {
			errs = append(errs, fmt.Sprintf("entries[%d].type is required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetInvokeTimeout returns the router invoke timeout as a Duration.
func (c *Config) GetInvokeTimeout() time.Duration {
	return time.Duration(c.Router.InvokeTimeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
