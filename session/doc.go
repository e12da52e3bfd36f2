// Package session provides Redis-backed session persistence and compact binary
// session encoding for the account security engine.
//
// # Binary encoding
//
// Sessions are stored in Redis as a compact binary format (schema versions
// v1 and v2) with forward migration on read. The encoder is append-only: new
// versions add fields but never reinterpret old ones.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model.
// It does NOT decide which session is "current", enforce termination rules,
// or apply per-account session caps. Those responsibilities belong to the
// Engine.
//
// # What this package must NOT do
//
//   - Import goAccount (no upward imports).
//   - Perform application-level authorization decisions.
//   - Store plaintext secrets in [Session] fields.
package session
