// Package postgres provides a reference [goAccount.CredentialStore] backed by
// PostgreSQL via pgx.
//
// # Design
//
// Accounts live in a single table with MFA columns; unconsumed backup codes
// live in a companion table keyed by (account_id, code_hash). Backup-code
// consumption is a single DELETE whose affected-row count decides the
// outcome, which makes single-use enforcement atomic without row locks.
//
// # Architecture boundaries
//
// This package only maps [goAccount.CredentialStore] calls onto SQL. Policy
// (what a valid password is, when MFA may be disabled) belongs to the Engine.
//
// # What this package must NOT do
//
//   - Own the pgx pool lifecycle; callers create and close it.
//   - Store plaintext backup codes or passwords.
package postgres
