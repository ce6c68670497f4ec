// Under Control - Home Automation Gateway
//
// This is the main entry point for the Under Control gateway. The gateway
// routes generic device commands to vendor-specific adapters (TP-Link Kasa,
// LG WebOS TVs, generic MQTT devices) behind one canonical request/response
// shape.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/undercontrol/gateway/internal/adapter"
	"github.com/undercontrol/gateway/internal/adapters"
	"github.com/undercontrol/gateway/internal/api"
	"github.com/undercontrol/gateway/internal/audit"
	"github.com/undercontrol/gateway/internal/discovery"
	"github.com/undercontrol/gateway/internal/infrastructure/config"
	"github.com/undercontrol/gateway/internal/infrastructure/database"
	"github.com/undercontrol/gateway/internal/infrastructure/logging"
	"github.com/undercontrol/gateway/internal/infrastructure/mqtt"
	"github.com/undercontrol/gateway/internal/registry"
	"github.com/undercontrol/gateway/internal/router"
	"github.com/undercontrol/gateway/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// shutdownTimeout bounds how long instance teardown may take at exit.
const shutdownTimeout = 15 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Under Control gateway",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open audit database (optional)
	var auditRepo audit.Repository
	if cfg.Audit.Enabled {
		db, dbErr := database.Open(database.Config{
			Path:        cfg.Audit.Database.Path,
			WALMode:     cfg.Audit.Database.WALMode,
			BusyTimeout: cfg.Audit.Database.BusyTimeout,
		})
		if dbErr != nil {
			return fmt.Errorf("opening audit database: %w", dbErr)
		}
		defer func() {
			log.Info("closing audit database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing audit database", "error", closeErr)
			}
		}()

		auditRepo, err = audit.NewSQLiteRepository(ctx, db.DB)
		if err != nil {
			return fmt.Errorf("preparing audit schema: %w", err)
		}
		log.Info("audit trail enabled", "path", cfg.Audit.Database.Path)
	} else {
		log.Info("audit trail disabled")
	}

	// Connect to MQTT broker (optional). A broker that is configured but
	// unreachable is a warning at startup: entries for other adapter types
	// must still come up.
	var broker *mqtt.Client
	if cfg.MQTT.Broker.Enabled() {
		broker, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			log.Warn("MQTT broker unavailable, mqtt-device adapter not offered",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"error", err,
			)
			broker = nil
		} else {
			defer func() {
				log.Info("disconnecting from MQTT")
				if closeErr := broker.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
			broker.SetLogger(log)
			log.Info("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"client_id", cfg.MQTT.Broker.ClientID,
			)
		}
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB command telemetry (optional)
	var telemetryWriter *telemetry.Writer
	if cfg.Telemetry.Enabled {
		telemetryWriter, err = telemetry.Connect(cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing telemetry connection")
			if closeErr := telemetryWriter.Close(); closeErr != nil {
				log.Error("error closing telemetry", "error", closeErr)
			}
		}()
		telemetryWriter.SetOnError(func(err error) {
			log.Error("telemetry write error", "error", err)
		})
		log.Info("telemetry connected",
			"url", cfg.Telemetry.URL,
			"org", cfg.Telemetry.Org,
			"bucket", cfg.Telemetry.Bucket,
		)
	} else {
		log.Info("telemetry disabled")
	}

	// Discover built-in adapter types
	deps := adapters.Deps{}
	if broker != nil {
		deps.Broker = broker
	}
	catalog, err := discovery.Discover(discovery.FromSlice(adapters.Builtin(deps)), log)
	if err != nil {
		return fmt.Errorf("adapter discovery: %w", err)
	}
	log.Info("adapter discovery complete", "types", catalog.Len())

	// Load configured entries. A configuration problem here is fatal and
	// reported in full: all problems, not just the first.
	reg := registry.New()
	reg.SetLogger(log)
	if err := reg.Load(ctx, entryConfigs(cfg.Entries), catalog); err != nil {
		return fmt.Errorf("loading entries: %w", err)
	}
	defer func() {
		log.Info("shutting down adapter instances")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := reg.ShutdownAll(shutdownCtx); shutdownErr != nil {
			log.Error("errors during instance shutdown", "error", shutdownErr)
		}
	}()
	log.Info("entries loaded", "count", reg.Count())

	// Build the command router with observers
	routerOpts := []router.Option{
		router.WithTimeout(cfg.GetInvokeTimeout()),
		router.WithLogger(log),
	}
	if auditRepo != nil {
		observer := audit.NewObserver(auditRepo, log)
		// Drained before the deferred db.Close: records for commands
		// answered right at shutdown still reach the trail.
		defer func() {
			log.Info("draining audit writes")
			if closeErr := observer.Close(); closeErr != nil {
				log.Error("error draining audit writes", "error", closeErr)
			}
		}()
		routerOpts = append(routerOpts, router.WithObserver(observer))
	}
	if telemetryWriter != nil {
		routerOpts = append(routerOpts, router.WithObserver(telemetryWriter))
	}
	commandRouter := router.New(reg, routerOpts...)

	// Reload re-reads the config file and swaps the entry set; the adapter
	// catalog is fixed for the process lifetime.
	reload := api.ReloaderFunc(func(ctx context.Context) error {
		fresh, loadErr := config.Load(configPath)
		if loadErr != nil {
			return fmt.Errorf("re-reading config: %w", loadErr)
		}
		return reg.Reload(ctx, entryConfigs(fresh.Entries), catalog)
	})

	// Start the HTTP API
	server, err := api.New(api.Deps{
		Config:    cfg.API,
		Logger:    log,
		Catalog:   catalog,
		Registry:  reg,
		Router:    commandRouter,
		AuditRepo: auditRepo,
		Reloader:  reload,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	// SIGHUP triggers a configuration reload; a failed reload keeps the
	// previous entry set serving.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-hup:
			log.Info("SIGHUP received, reloading entries")
			if reloadErr := reload.Reload(ctx); reloadErr != nil {
				log.Error("reload failed, previous entries still serving", "error", reloadErr)
			} else {
				log.Info("reload complete", "entries", reg.Count())
			}

		case <-ctx.Done():
			log.Info("shutdown signal received, cleaning up")
			// Deferred Close() calls run in reverse order:
			// API server, adapter instances, telemetry, MQTT, audit database.
			log.Info("Under Control gateway stopped")
			return nil
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses UNDERCONTROL_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("UNDERCONTROL_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// entryConfigs converts configured entries into the registry's input shape.
func entryConfigs(entries []config.EntryConfig) []adapter.Config {
	out := make([]adapter.Config, 0, len(entries))
	for _, e := range entries {
		out = append(out, adapter.Config{
			EntryID:  e.ID,
			Type:     e.Type,
			Settings: adapter.Settings(e.Settings),
		})
	}
	return out
}
