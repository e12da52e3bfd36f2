// Package stores provides the Redis-backed, short-lived record store for
// in-flight MFA enrollment attempts.
//
// # Design
//
// The store persists a versioned, binary-encoded record in Redis with a TTL.
// Mutation operations (Transition, RecordFailure) use WATCH/MULTI optimistic
// transactions with automatic retry on contention. Records are single-use:
// deleted on completion, cancellation, or attempt exhaustion, so a finished
// attempt reads as absent.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control for transient
// enrollment records. It does NOT generate secrets, verify codes, or make
// enrollment decisions. Those responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import goAccount or any sibling internal package.
//   - Log or expose pending secrets.
package stores
