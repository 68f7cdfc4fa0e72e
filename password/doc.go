// Package password implements the credential verifier: one-way password
// hashing with argon2id (default) and bcrypt.
//
// # Output format
//
// Argon2id hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Bcrypt hashes use the usual $2a$/$2b$ modular crypt format. [Multi] verifies
// either encoding, so a store can be migrated one login at a time.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Enforce password policy (minimum length is checked by the engine).
//   - Log plaintext passwords or hashes.
package password
