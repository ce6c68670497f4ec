package discovery

import (
	"fmt"
	"sort"

	"github.com/undercontrol/gateway/internal/adapter"
)

// Logger is the logging interface used during discovery.
type Logger interface {
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}
func (noopLogger) Info(string, ...any) {}

// Source supplies candidate adapter factories. How candidates are located
// (compiled-in list, build-tag selection, ...) is the caller's concern;
// discovery only requires a finite sequence.
type Source func(yield func(adapter.Factory) bool)

// FromSlice adapts a fixed factory list into a Source.
func FromSlice(factories []adapter.Factory) Source {
	return func(yield func(adapter.Factory) bool) {
		for _, f := range factories {
			if !yield(f) {
				return
			}
		}
	}
}

// Catalog is the immutable result of discovery: adapter type name to factory.
type Catalog struct {
	factories   map[string]adapter.Factory
	descriptors map[string]adapter.Descriptor
}

// Get returns the factory and descriptor registered under typeName.
func (c *Catalog) Get(typeName string) (adapter.Factory, adapter.Descriptor, bool) {
	f, ok := c.factories[typeName]
	if !ok {
		return nil, adapter.Descriptor{}, false
	}
	return f, c.descriptors[typeName], true
}

// Types returns all registered descriptors, sorted by type name.
func (c *Catalog) Types() []adapter.Descriptor {
	out := make([]adapter.Descriptor, 0, len(c.descriptors))
	for _, d := range c.descriptors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TypeName < out[j].TypeName })
	return out
}

// Len returns the number of registered adapter types.
func (c *Catalog) Len() int { return len(c.factories) }

// Discover walks the source and builds the adapter type catalog.
//
// Each candidate is verified against the contract: a non-nil factory, a
// non-empty type name, at least one declared operation, and no duplicate
// operation names. Candidates failing these checks are skipped and logged
// as warnings.
//
// Duplicate type names across candidates are a fatal startup error.
func Discover(src Source, logger Logger) (*Catalog, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	cat := &Catalog{
		factories:   make(map[string]adapter.Factory),
		descriptors: make(map[string]adapter.Descriptor),
	}

	var dupes []string
	src(func(f adapter.Factory) bool {
		if f == nil {
			logger.Warn("discovery: skipping nil adapter factory")
			return true
		}

		desc := f.Describe()
		if err := checkContract(desc); err != nil {
			logger.Warn("discovery: skipping adapter candidate",
				"type", desc.TypeName,
				"error", err,
			)
			return true
		}

		if _, exists := cat.factories[desc.TypeName]; exists {
			dupes = append(dupes, desc.TypeName)
			return true
		}

		cat.factories[desc.TypeName] = f
		cat.descriptors[desc.TypeName] = desc
		logger.Info("discovery: registered adapter type",
			"type", desc.TypeName,
			"operations", len(desc.Operations),
		)
		return true
	})

	if len(dupes) > 0 {
		return nil, fmt.Errorf("discovery: ambiguous registration, duplicate adapter types: %v", dupes)
	}

	return cat, nil
}

// checkContract performs the structural contract check on a descriptor.
func checkContract(desc adapter.Descriptor) error {
	if desc.TypeName == "" {
		return fmt.Errorf("empty type name")
	}
	if len(desc.Operations) == 0 {
		return fmt.Errorf("no declared operations")
	}
	seen := make(map[string]bool, len(desc.Operations))
	for _, op := range desc.Operations {
		if op == "" {
			return fmt.Errorf("empty operation name")
		}
		if seen[op] {
			return fmt.Errorf("duplicate operation %q", op)
		}
		seen[op] = true
	}
	return nil
}
