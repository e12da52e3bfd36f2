// Package rate provides internal primitives used to build Redis-backed rate limit keys,
// errors, and limiter behavior for second-factor verification.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefix:
//   - "ag:" holds second-factor attempts per tenant+account
//
// # What this package must NOT do
//
//   - Decide which sentinel error reaches callers (the Engine maps ErrRateLimited).
//   - Be imported outside the goAccount module.
package rate
