// Package authcore is an authentication core for email/password accounts
// with optional TOTP second factor, single-use backup codes and rotating
// refresh tokens.
//
// An [Engine] is assembled with [Builder] from a [Config] and a [UserStore].
// Short-lived state (session markers, pending TOTP enrollments, attempt
// counters) lives in Redis when [Builder.WithRedis] is set and in process
// memory otherwise. Engine methods are safe for concurrent use.
//
// # Flows
//
//   - Register creates the user with its initial backup codes and first session.
//   - Login returns either an MFA challenge or a token pair. A challenged
//     caller repeats Login with MFACode, or calls VerifyMFA.
//   - Refresh rotates a refresh token. Each token is single-use; presenting a
//     rotated token again revokes the user's remaining refresh tokens.
//   - SetupMFA, VerifyMFA and DisableMFA manage TOTP enrollment.
//   - RegenerateBackupCodes replaces the recovery codes.
//   - Logout revokes refresh tokens and clears the session marker.
//
// Wherever a second factor is accepted, a backup code is tried first and a
// TOTP code second.
//
// # Errors
//
// Expected outcomes are reported with the sentinels in errors.go and should
// be matched with errors.Is. Backend faults wrap [ErrStoreUnavailable] and
// are retried once before they reach the caller.
//
// # What this package must NOT do
//
//   - Log or return secrets, passwords, backup codes or tokens beyond the
//     results they belong to.
//   - Import any sub-package that re-imports authcore.
package authcore
