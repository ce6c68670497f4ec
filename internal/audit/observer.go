package audit

import (
	"context"
	"sync"
	"time"

	"github.com/undercontrol/gateway/internal/router"
)

// writeTimeout bounds one asynchronous audit insert.
const writeTimeout = 5 * time.Second

// Logger is the logging interface used by the observer.
type Logger interface {
	Warn(msg string, args ...any)
}

// Observer adapts the repository to the router's observer hook. Inserts run
// in their own goroutine so a slow disk never sits on the command path;
// Close drains them so the trail is complete before the database closes.
type Observer struct {
	repo   Repository
	logger Logger
	wg     sync.WaitGroup
}

// NewObserver creates a router observer writing to the given repository.
func NewObserver(repo Repository, logger Logger) *Observer {
	return &Observer{repo: repo, logger: logger}
}

// ObserveCommand records one routed command.
func (o *Observer) ObserveCommand(_ context.Context, cmd router.Command, adapterType, outcome string, elapsed time.Duration) {
	rec := &Record{
		EntryID:     cmd.EntryID,
		AdapterType: adapterType,
		Operation:   cmd.Operation,
		Outcome:     outcome,
		Params:      cmd.Params,
		DurationMS:  elapsed.Milliseconds(),
	}

	// Detached from the request context: the command has already been
	// answered, the trail entry should survive the request ending.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := o.repo.Create(ctx, rec); err != nil && o.logger != nil {
			o.logger.Warn("failed to write audit record",
				"entry", rec.EntryID,
				"operation", rec.Operation,
				"error", err,
			)
		}
	}()
}

// Close waits for in-flight inserts. Call before closing the database so
// records for just-answered commands are not lost at shutdown.
func (o *Observer) Close() error {
	o.wg.Wait()
	return nil
}
