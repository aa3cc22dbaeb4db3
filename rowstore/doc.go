// Package rowstore abstracts the row-oriented system of record behind the
// cache: a sheet-like store supporting full range reads, row appends, and
// single-cell writes.
//
// The package ships two implementations:
//
//   - MemoryStore: thread-safe in-memory store for tests and embedding
//   - RateLimitedStore: decorator throttling calls for quota-bound backends
//
// Production adapters (e.g. a Google Sheets client) implement Store outside
// this module.
package rowstore
