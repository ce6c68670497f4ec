// Package registry owns the live adapter instances, keyed by entry id.
//
// The registry consumes the discovery catalog plus the ordered entry
// configuration and instantiates exactly one adapter instance per configured
// entry. Lookup by entry id is O(1) and never blocks on in-flight invokes.
//
// # Lifecycle
//
//	reg := registry.New(logger)
//	if err := reg.Load(ctx, cfg.Entries, catalog); err != nil { ... } // collect-all
//	entry, err := reg.Get("kitchen-light")
//	reg.Reload(ctx, newConfigs, catalog) // build, publish, retire
//	reg.ShutdownAll(ctx)                 // best-effort, errors collected
//
// # Reload discipline
//
// Reload builds the complete replacement set before publishing anything,
// swaps the whole map under the write lock, and only then shuts down the
// retired instances. Concurrent Get calls therefore see either the fully-old
// or the fully-new set, never a mix. A failed reload leaves the old set
// serving untouched.
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package registry
