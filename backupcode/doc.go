// Package backupcode generates single-use recovery codes and the hashes under
// which they are stored.
//
// Codes are shown to the user once. Stores keep only Hash(userID, code), so a
// leaked store does not leak usable codes. Consumption and replacement are
// store operations; this package performs no I/O.
package backupcode
