// Package jwt issues and verifies the signed access and refresh tokens.
//
// Each token kind has its own [Manager] and key set; [Issuer] refuses to
// share keys between them, so a leaked refresh key cannot mint access tokens.
// Refresh tokens are persisted by callers only as [HashToken] digests.
package jwt
