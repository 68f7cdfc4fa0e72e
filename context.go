package authcore

import "context"

type accessClaimsContextKey struct{}

// WithAccessClaims attaches verified access claims to ctx. HTTP guards call
// it after ValidateAccess succeeds.
func WithAccessClaims(ctx context.Context, claims *AccessClaims) context.Context {
	return context.WithValue(ctx, accessClaimsContextKey{}, claims)
}

// AccessClaimsFromContext returns the claims stored by WithAccessClaims.
func AccessClaimsFromContext(ctx context.Context) (*AccessClaims, bool) {
	if ctx == nil {
		return nil, false
	}
	claims, ok := ctx.Value(accessClaimsContextKey{}).(*AccessClaims)
	return claims, ok && claims != nil
}

// UserIDFromContext is a shorthand for the subject of the stored claims.
func UserIDFromContext(ctx context.Context) string {
	claims, ok := AccessClaimsFromContext(ctx)
	if !ok {
		return ""
	}
	return claims.UserID
}
