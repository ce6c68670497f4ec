// Package api provides the HTTP REST API for the Under Control gateway.
//
// It exposes the adapter catalog, the configured entry list, command
// dispatch, configuration reload, and the command audit trail.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/undercontrol/gateway/internal/audit"
	"github.com/undercontrol/gateway/internal/discovery"
	"github.com/undercontrol/gateway/internal/infrastructure/config"
	"github.com/undercontrol/gateway/internal/infrastructure/logging"
	"github.com/undercontrol/gateway/internal/registry"
	"github.com/undercontrol/gateway/internal/router"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Reloader re-reads entry configuration and swaps the registry's instance
// set. It is an interface so the API server does not depend on how the
// composition root loads configuration.
type Reloader interface {
	Reload(ctx context.Context) error
}

// ReloaderFunc adapts a plain function to the Reloader interface.
type ReloaderFunc func(ctx context.Context) error

// Reload calls the wrapped function.
func (f ReloaderFunc) Reload(ctx context.Context) error { return f(ctx) }

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	Catalog   *discovery.Catalog
	Registry  *registry.Registry
	Router    *router.Router
	AuditRepo audit.Repository // optional; audit endpoint returns 503 when nil
	Reloader  Reloader         // optional; reload endpoint returns 503 when nil
	Version   string
}

// Server is the HTTP API server for the gateway.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	catalog   *discovery.Catalog
	registry  *registry.Registry
	commands  *router.Router
	auditRepo audit.Repository
	reloader  Reloader
	version   string
	server    *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("adapter catalog is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if deps.Router == nil {
		return nil, fmt.Errorf("command router is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		catalog:   deps.Catalog,
		registry:  deps.Registry,
		commands:  deps.Router,
		auditRepo: deps.AuditRepo,
		reloader:  deps.Reloader,
		version:   deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// The listener runs in a background goroutine; the server is stopped with
// Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
