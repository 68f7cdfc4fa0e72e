// Package middleware adapts authcore access-token validation to net/http.
//
// [Guard] reads the bearer token, validates it through the Engine and stores
// the claims with authcore.WithAccessClaims. [RequireAuth] validates the
// signature only; [RequireStrict] also requires the token to belong to the
// user's latest session.
//
// The package makes no decisions of its own beyond pass or reject.
package middleware
