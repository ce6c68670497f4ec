// Package discovery builds the catalog of available adapter types.
//
// Discovery runs once at process startup: it walks a finite sequence of
// candidate adapter factories, checks each against the adapter contract,
// and produces an immutable Catalog mapping type name to factory.
//
// A candidate that fails the contract check is skipped with a warning so a
// broken optional adapter cannot stop the rest of the gateway from starting.
// Two candidates claiming the same type name, however, is an ambiguous
// registration and fails discovery outright.
//
// The catalog is not rebuilt at runtime; adapter code changes are a
// deployment event and require a restart.
package discovery
