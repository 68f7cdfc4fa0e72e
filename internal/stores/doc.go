// Package stores provides the ephemeral, TTL-bound state of the engine: MFA
// setup staging and the per-user session marker.
//
// # Design
//
// Both trackers sit on a minimal [KV] contract with two backends: Redis
// (shared, required for multi-instance deployments) and an in-process
// go-cache map (single process only). Cleanup relies on key expiry alone;
// there is no sweeping pass of our own.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package.
//   - Log stored values. They are TOTP secrets and session ids.
//   - Decide whether a staged secret is valid. The engine does that.
package stores
