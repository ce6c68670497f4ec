package router

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/undercontrol/gateway/internal/adapter"
	"github.com/undercontrol/gateway/internal/discovery"
	"github.com/undercontrol/gateway/internal/registry"
)

// spyFactory hands out a single pre-built instance.
type spyFactory struct {
	desc adapter.Descriptor
	inst adapter.Instance
}

func (f *spyFactory) Describe() adapter.Descriptor { return f.desc }

func (f *spyFactory) Configure(adapter.Config) (adapter.Instance, error) {
	return f.inst, nil
}

// spyInstance counts invokes and runs a configurable behaviour.
type spyInstance struct {
	invokes atomic.Int32
	behave  func(ctx context.Context, op string, params adapter.Params) (any, error)
	serial  bool
}

func (s *spyInstance) Invoke(ctx context.Context, op string, params adapter.Params) (any, error) {
	s.invokes.Add(1)
	if s.behave != nil {
		return s.behave(ctx, op, params)
	}
	return map[string]any{"op": op}, nil
}

func (s *spyInstance) Shutdown(context.Context) error { return nil }

func (s *spyInstance) InvokeSerially() bool { return s.serial }

// newRouter wires a registry with one entry ("lamp", type "spy", op "toggle")
// backed by the given instance.
func newRouter(t *testing.T, inst *spyInstance, opts ...Option) *Router {
	t.Helper()

	factory := &spyFactory{
		desc: adapter.Descriptor{TypeName: "spy", Operations: []string{"toggle"}},
		inst: inst,
	}
	cat, err := discovery.Discover(discovery.FromSlice([]adapter.Factory{factory}), nil)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	reg := registry.New()
	cfg := []adapter.Config{{EntryID: "lamp", Type: "spy"}}
	if err := reg.Load(context.Background(), cfg, cat); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	return New(reg, opts...)
}

func TestRoute_Success(t *testing.T) {
	inst := &spyInstance{}
	r := newRouter(t, inst)

	env := r.Route(context.Background(), Command{EntryID: "lamp", Operation: "toggle"})
	if !env.OK {
		t.Fatalf("Route() = %+v, want success", env)
	}
	if got := inst.invokes.Load(); got != 1 {
		t.Errorf("invokes = %d, want 1", got)
	}
}

func TestRoute_UnknownEntry(t *testing.T) {
	inst := &spyInstance{}
	r := newRouter(t, inst)

	env := r.Route(context.Background(), Command{EntryID: "ghost", Operation: "toggle"})
	if env.OK || env.Error.Kind != FailUnknownEntry {
		t.Fatalf("Route() = %+v, want %s", env, FailUnknownEntry)
	}
	if got := inst.invokes.Load(); got != 0 {
		t.Errorf("invokes = %d, want 0: adapter must not be touched", got)
	}
}

func TestRoute_UndeclaredOperation(t *testing.T) {
	inst := &spyInstance{}
	r := newRouter(t, inst)

	env := r.Route(context.Background(), Command{EntryID: "lamp", Operation: "explode"})
	if env.OK || env.Error.Kind != FailUnsupportedOperation {
		t.Fatalf("Route() = %+v, want %s", env, FailUnsupportedOperation)
	}
	if got := inst.invokes.Load(); got != 0 {
		t.Errorf("invokes = %d, want 0: adapter must not be touched", got)
	}
}

func TestRoute_AdapterErrorKinds(t *testing.T) {
	inst := &spyInstance{
		behave: func(context.Context, string, adapter.Params) (any, error) {
			return nil, adapter.Errorf(adapter.KindVendorError, "device said no")
		},
	}
	r := newRouter(t, inst)

	env := r.Route(context.Background(), Command{EntryID: "lamp", Operation: "toggle"})
	if env.OK || env.Error.Kind != FailVendorError {
		t.Fatalf("Route() = %+v, want %s", env, FailVendorError)
	}
	if env.Error.Message != "device said no" {
		t.Errorf("Message = %q, want the adapter's message", env.Error.Message)
	}
}

func TestRoute_PanicIsIsolated(t *testing.T) {
	calls := 0
	inst := &spyInstance{
		behave: func(context.Context, string, adapter.Params) (any, error) {
			calls++
			if calls == 1 {
				panic("vendor lib exploded")
			}
			return map[string]any{"state": "on"}, nil
		},
	}
	r := newRouter(t, inst)

	env := r.Route(context.Background(), Command{EntryID: "lamp", Operation: "toggle"})
	if env.OK || env.Error.Kind != FailInternalFault {
		t.Fatalf("Route() = %+v, want %s", env, FailInternalFault)
	}
	if env.Error.Message != redactedFaultMessage {
		t.Errorf("Message = %q, want redacted %q", env.Error.Message, redactedFaultMessage)
	}

	// The router keeps serving after the panic.
	env = r.Route(context.Background(), Command{EntryID: "lamp", Operation: "toggle"})
	if !env.OK {
		t.Fatalf("Route() after panic = %+v, want success", env)
	}
}

func TestRoute_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	inst := &spyInstance{
		behave: func(context.Context, string, adapter.Params) (any, error) {
			// Deliberately ignores ctx: the router must still answer.
			<-release
			return nil, nil
		},
	}
	r := newRouter(t, inst, WithTimeout(30*time.Millisecond))

	start := time.Now()
	env := r.Route(context.Background(), Command{EntryID: "lamp", Operation: "toggle"})
	elapsed := time.Since(start)

	if env.OK || env.Error.Kind != FailUnreachable {
		t.Fatalf("Route() = %+v, want %s", env, FailUnreachable)
	}
	if elapsed > 5*time.Second {
		t.Errorf("Route() took %v, the caller was held past the deadline", elapsed)
	}
}

func TestRoute_CancelledContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	inst := &spyInstance{
		behave: func(context.Context, string, adapter.Params) (any, error) {
			<-release
			return nil, nil
		},
	}
	r := newRouter(t, inst)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	env := r.Route(ctx, Command{EntryID: "lamp", Operation: "toggle"})
	if env.OK || env.Error.Kind != FailUnreachable {
		t.Fatalf("Route() = %+v, want %s", env, FailUnreachable)
	}
}

func TestRoute_SerialInstanceNeverOverlaps(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	inst := &spyInstance{
		serial: true,
		behave: func(context.Context, string, adapter.Params) (any, error) {
			n := inFlight.Add(1)
			for {
				prev := maxInFlight.Load()
				if n <= prev || maxInFlight.CompareAndSwap(prev, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return nil, nil
		},
	}
	r := newRouter(t, inst)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Route(context.Background(), Command{EntryID: "lamp", Operation: "toggle"})
		}()
	}
	wg.Wait()

	if got := maxInFlight.Load(); got != 1 {
		t.Errorf("max concurrent invokes = %d, want 1", got)
	}
}

// recordingObserver captures observer notifications.
type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
	types    []string
}

func (o *recordingObserver) ObserveCommand(_ context.Context, _ Command, adapterType, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
	o.types = append(o.types, adapterType)
}

func TestRoute_NotifiesObservers(t *testing.T) {
	obs := &recordingObserver{}
	inst := &spyInstance{}
	r := newRouter(t, inst, WithObserver(obs))

	r.Route(context.Background(), Command{EntryID: "lamp", Operation: "toggle"})
	r.Route(context.Background(), Command{EntryID: "ghost", Operation: "toggle"})

	want := []string{OutcomeSuccess, FailUnknownEntry}
	if len(obs.outcomes) != len(want) {
		t.Fatalf("observed %d commands, want %d", len(obs.outcomes), len(want))
	}
	for i, w := range want {
		if obs.outcomes[i] != w {
			t.Errorf("outcomes[%d] = %q, want %q", i, obs.outcomes[i], w)
		}
	}
	if obs.types[0] != "spy" {
		t.Errorf("types[0] = %q, want %q", obs.types[0], "spy")
	}
	if obs.types[1] != "" {
		t.Errorf("types[1] = %q, want empty for unresolved entry", obs.types[1])
	}
}
