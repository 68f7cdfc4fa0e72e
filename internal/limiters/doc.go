// Package limiters provides the failure-attempt limiters of the engine,
// built on the internal/rate counters.
//
// # Limiters
//
//   - [NewLogin]: failed logins per email (namespace "al").
//   - [NewMFA]: failed TOTP/backup-code checks per user (namespace "am").
//
// All limiters are nil-safe: calling any method on a nil receiver returns nil,
// which is how a disabled limiter is represented.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting. Flow functions decide consequences.
package limiters
