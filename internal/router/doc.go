// Package router dispatches normalised commands to adapter instances.
//
// The router is the single entry point external callers use: it resolves the
// target entry via the registry, validates the operation against the entry's
// declared operation set, invokes the adapter under a per-call timeout, and
// normalises the heterogeneous result/error shapes into one canonical
// envelope.
//
// Fail-fast ordering matters: an unknown entry or undeclared operation is
// rejected before the adapter is touched, so a bad request can never cause
// partial side effects on the vendor side.
//
// The router applies no retries. Only an adapter knows whether an operation
// is idempotent for its vendor, so retry policy (if any) lives inside
// adapters.
//
// # Thread Safety
//
// Route is safe for concurrent use. Instances that declared
// single-concurrency are serialised individually; unrelated instances are
// never blocked by each other.
package router
