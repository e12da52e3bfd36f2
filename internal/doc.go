// Package internal contains helper utilities that are intentionally private to
// goAccount, including secure random identifier generation.
//
// # Sub-packages
//
//   - codes: backup code generation, formatting, and hashing
//   - rate: Redis-backed fixed-window rate limit primitives
//   - stores: Redis-backed enrollment attempt store
//
// # What this package must NOT do
//
//   - Export types that appear in the public goAccount API.
//   - Be imported by any package outside the goAccount module.
package internal
