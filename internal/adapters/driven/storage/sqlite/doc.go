// Package sqlite provides the embedded vector index backend.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Each index collection is a row in the
// collections table; its points live in the points table keyed by
// (collection_id, id).
//
// # Search
//
// Dense search is a brute-force cosine scan over the collection, restricted in
// SQL to the requested papers. Hybrid collections also score the stored sparse
// vectors by inner product; both candidate lists are widened and then fused
// with the hybrid package.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.scholar/data/vectors.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
