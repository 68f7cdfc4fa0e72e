// Package totp implements RFC 6238 time-based one-time passwords on top of
// github.com/pquerna/otp.
//
// A [Manager] is a pure function of its configuration: [Manager.Verify]
// depends only on the secret, the code and the supplied time. Enrollment
// state (pending secrets, enabled flags) is owned by the engine, never by
// this package.
package totp
