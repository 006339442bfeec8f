// Package store provides persistence for herdbook's breeding records.
//
// # Architecture
//
// A single Store interface is implemented by two interchangeable backends:
//
//   - MemoryStore: volatile maps, no persistence, no referential checks.
//     Surrogate IDs restart at 1 with each instance.
//   - SQLiteStore: durable SQLite database with foreign-key constraints
//     mirroring the entity relationships. Surrogate IDs continue across
//     restarts.
//
// Callers hold only the Store interface; the backend is selected once at
// process startup and never branched on afterwards.
//
// # Data Models
//
//   - User: account for the auth layer (unique username, opaque credential)
//   - Farmer: livestock owner
//   - Farm: site owned by a farmer; cowCount is caller-maintained
//   - Cow: keyed by its caller-assigned national ID (natural key)
//   - Act: immutable insemination record for a cow
//   - Session: authenticated browser session, swept or stored per backend
//
// # Semantics
//
// Creates assign identity and return the populated record. Updates merge a
// sparse patch over the existing record and fail with ErrNotFound on absent
// keys; an empty patch is a no-op merge. Deletes are idempotent. Listings
// accept an optional single-field equality filter and make no ordering
// promises. Counts are derived by callers from listings.
//
// # Error Handling
//
//   - ErrNotFound: no record at the requested key
//   - ErrDuplicateCow, ErrDuplicateUsername: uniqueness conflicts
//   - ErrForeignKey: SQLite only; a reference violates a declared constraint
//   - ErrUnavailable: SQLite only; the engine itself failed (retryable)
//
// Errors keep their kind through wrapping; match with errors.Is. The store
// never retries and never swallows a failure.
//
// # SQLite Configuration
//
// The SQLite backend runs with:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// and keeps the legacy French column names the data originated from
// (nom_complet, num_national, date_insemination, ...).
//
// # Testing
//
// Use NewMemoryStore for unit tests and NewSQLiteStore(":memory:") for
// integration tests against real SQLite.
package store
