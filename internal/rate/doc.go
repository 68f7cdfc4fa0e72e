// Package rate provides the fixed-window counters the attempt limiters are
// built on.
//
// # Window semantics
//
// The first hit on a key opens its window (INCR followed by EXPIRE in Redis,
// Add with expiry in go-cache). Later hits only increment. When the window
// ends the key expires and counting starts over.
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters).
//   - Be imported outside the authcore module.
package rate
