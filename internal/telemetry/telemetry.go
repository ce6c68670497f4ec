// Package telemetry writes per-command measurements to InfluxDB.
//
// One point is recorded for every routed command: which entry, which
// adapter type, which operation, how it ended, and how long it took.
// Writes are batched and non-blocking; telemetry being down never slows
// or fails a command. The whole feature is optional and off by default.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/undercontrol/gateway/internal/infrastructure/config"
	"github.com/undercontrol/gateway/internal/router"
)

// Default timeouts and batching values.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultBatchSize      = 100
	defaultFlushSeconds   = 10

	// millisecondsPerSecond converts seconds to milliseconds for the InfluxDB API.
	millisecondsPerSecond = 1000
)

// Sentinel errors for telemetry operations.
var (
	// ErrDisabled indicates telemetry is disabled in config.
	ErrDisabled = errors.New("telemetry: disabled in configuration")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("telemetry: connection failed")
)

// Writer records command measurements into InfluxDB.
//
// Thread Safety: all methods are safe for concurrent use; writes are
// batched and sent asynchronously by the influx client.
type Writer struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	// onError is called when async write errors occur.
	onError func(err error)
	mu      sync.RWMutex
}

// Connect establishes the InfluxDB connection and verifies it with a ping.
func Connect(cfg config.TelemetryConfig) (*Writer, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushSeconds
	}

	// #nosec G115 -- values validated above to be positive
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	w := &Writer{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}

	go w.handleWriteErrors(w.writeAPI.Errors())

	return w, nil
}

// handleWriteErrors processes async write errors from the WriteAPI.
func (w *Writer) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		w.mu.RLock()
		callback := w.onError
		w.mu.RUnlock()
		if callback != nil {
			callback(err)
		}
	}
}

// SetOnError sets a callback for asynchronous write failures.
func (w *Writer) SetOnError(callback func(err error)) {
	w.mu.Lock()
	w.onError = callback
	w.mu.Unlock()
}

// ObserveCommand implements the router observer hook: one point per
// routed command.
func (w *Writer) ObserveCommand(_ context.Context, cmd router.Command, adapterType, outcome string, elapsed time.Duration) {
	point := write.NewPoint(
		"command",
		map[string]string{
			"entry_id":  cmd.EntryID,
			"type":      adapterType,
			"operation": cmd.Operation,
			"outcome":   outcome,
		},
		map[string]interface{}{
			"duration_ms": elapsed.Milliseconds(),
		},
		time.Now(),
	)

	w.writeAPI.WritePoint(point)
}

// Close flushes pending points and releases the client.
func (w *Writer) Close() error {
	if w.client == nil {
		return nil
	}
	w.writeAPI.Flush()
	w.client.Close()
	return nil
}
