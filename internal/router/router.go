package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/undercontrol/gateway/internal/registry"
)

// DefaultInvokeTimeout bounds a single adapter invocation unless configured
// otherwise.
const DefaultInvokeTimeout = 10 * time.Second

// Logger defines the logging interface used by the Router.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer is notified after every routed command. Implementations (audit
// trail, telemetry) must not block; slow work belongs on their side of the
// call.
type Observer interface {
	ObserveCommand(ctx context.Context, cmd Command, adapterType, outcome string, elapsed time.Duration)
}

// Router resolves commands against the registry and invokes adapters.
type Router struct {
	registry  *registry.Registry
	timeout   time.Duration
	logger    Logger
	observers []Observer
}

// Option configures a Router.
type Option func(*Router)

// WithTimeout overrides the per-call invoke timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the router's logger.
func WithLogger(logger Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver registers an observer for routed commands.
func WithObserver(o Observer) Option {
	return func(r *Router) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// New creates a router over the given registry.
func New(reg *registry.Registry, opts ...Option) *Router {
	r := &Router{
		registry: reg,
		timeout:  DefaultInvokeTimeout,
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route dispatches one command and returns the canonical envelope.
//
// Resolution order: entry lookup, operation membership, then invocation.
// The adapter is never touched for an unknown entry or an undeclared
// operation. Per-request failures never propagate as raw faults; the
// caller always receives an envelope.
func (r *Router) Route(ctx context.Context, cmd Command) Envelope {
	start := time.Now()
	env, adapterType := r.route(ctx, cmd)
	elapsed := time.Since(start)

	for _, o := range r.observers {
		o.ObserveCommand(ctx, cmd, adapterType, env.Outcome(), elapsed)
	}

	r.logger.Debug("command routed",
		"entry", cmd.EntryID,
		"operation", cmd.Operation,
		"outcome", env.Outcome(),
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return env
}

// route performs resolution and invocation, returning the envelope plus the
// resolved adapter type name (empty when resolution failed).
func (r *Router) route(ctx context.Context, cmd Command) (Envelope, string) {
	entry, err := r.registry.Get(cmd.EntryID)
	if err != nil {
		return failure(FailUnknownEntry, fmt.Sprintf("no entry %q", cmd.EntryID)), ""
	}

	if !entry.Descriptor.Supports(cmd.Operation) {
		return failure(FailUnsupportedOperation, fmt.Sprintf(
			"entry %q (type %q) does not support operation %q",
			cmd.EntryID, entry.Descriptor.TypeName, cmd.Operation,
		)), entry.Descriptor.TypeName
	}

	return r.invoke(ctx, entry, cmd), entry.Descriptor.TypeName
}

// invokeResult carries the outcome of one adapter invocation goroutine.
type invokeResult struct {
	payload any
	err     error
	panicky bool
}

// invoke runs the adapter call under the per-call timeout.
//
// The call runs in its own goroutine so a vendor call that ignores context
// cancellation cannot hold the caller past the deadline. Cancellation of the
// vendor side is best-effort; the guarantee is only that the caller stops
// waiting.
func (r *Router) invoke(ctx context.Context, entry *registry.Entry, cmd Command) Envelope {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan invokeResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("adapter panicked during invoke",
					"entry", cmd.EntryID,
					"type", entry.Descriptor.TypeName,
					"operation", cmd.Operation,
					"panic", fmt.Sprint(p),
					"stack", string(debug.Stack()),
				)
				done <- invokeResult{panicky: true}
			}
		}()

		// Per-instance mutual exclusion for adapters that declared
		// single-concurrency; unrelated entries are unaffected.
		entry.Acquire()
		defer entry.Release()

		payload, err := entry.Instance.Invoke(ctx, cmd.Operation, cmd.Params)
		done <- invokeResult{payload: payload, err: err}
	}()

	select {
	case res := <-done:
		if res.panicky {
			return failure(FailInternalFault, redactedFaultMessage)
		}
		env := normalize(res.payload, res.err)
		if env.Error != nil && env.Error.Kind == FailInternalFault && res.err != nil {
			// Contract violation: the adapter returned an error outside the
			// declared taxonomy. Full detail stays server-side.
			r.logger.Error("adapter returned undeclared error",
				"entry", cmd.EntryID,
				"type", entry.Descriptor.TypeName,
				"operation", cmd.Operation,
				"error", res.err,
			)
		}
		return env

	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return failure(FailUnreachable, fmt.Sprintf(
				"operation %q timed out after %v", cmd.Operation, r.timeout))
		}
		return failure(FailUnreachable, "request cancelled")
	}
}
