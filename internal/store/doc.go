// Package store provides the SQLite-backed canonical-form cache.
//
// The store keeps:
//   - Canonical forms: flattened lin-op graphs keyed by their content hash
//   - Structures: model structure hash to form hash, the cache index
//   - Runs: one record per compilation, with the form it used
//   - Parameter values: the values bound for each run
//
// Canonicalization never reads parameter values, so a model recompiled with
// new parameter values finds its form through the structure index.
//
// # Ordering
//
// All ordering uses seq INTEGER (logical clock), never timestamps. Queries
// order by seq ASC then id COLLATE BINARY ASC, so results are identical
// across runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Form hashes are computed by ir.FormHash over canonical JSON with domain
// separation.
package store
