// Package goAccount provides an account-security engine covering password
// rotation, MFA enrollment, live-session management, and second-factor
// verification, with Redis-backed state and pluggable credential storage.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goAccount is the public surface. It exposes [Engine], [Builder], [Config], and value
// types (MetricsSnapshot, SessionInfo, EnrollmentView, etc.). All internal
// coordination (enrollment persistence, session encoding, rate limiting, audit
// dispatch) lives under internal/ or support packages and is never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is allocation-only
//     until Build).
//   - Import any sub-package that re-imports goAccount (no import cycles).
//
// # Performance contract
//
// RequiresSecondFactor is pure and allocation-free. VerifySecondFactor and the
// session operations are allowed one Redis round-trip per call plus one
// credential-store call; enrollment transitions use a single WATCH transaction.
package goAccount
