// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunRegister, RunLogin, RunRefresh, RunVerifyMFA, etc.)
// accepts a typed dependency struct of funcs and returns results without
// side-effects beyond those dependencies. The Engine wires the structs once;
// tests wire them with in-memory fakes.
//
// # Second factor
//
// Login, VerifyMFA, DisableMFA and RegenerateBackupCodes share one check:
// input shaped like a backup code is tried against the stored codes first,
// then against the TOTP secret. Failures count against a per-user budget.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authcore (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency funcs.
package flows
