package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/spintune/authcore"
)

// Mode selects how much of the access token is checked.
type Mode int

const (
	// ModeStateless checks signature, type and expiry only.
	ModeStateless Mode = iota
	// ModeStrict additionally checks the session marker in the ephemeral store.
	ModeStrict
)

// Validator is the part of *authcore.Engine the guards use.
type Validator interface {
	ValidateAccess(token string) (*authcore.AccessClaims, error)
	ValidateAccessStrict(ctx context.Context, token string) (*authcore.AccessClaims, error)
}

// Guard rejects requests without a valid bearer access token. A store
// outage in strict mode answers 503 instead of 401.
func Guard(v Validator, mode Mode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			var (
				claims *authcore.AccessClaims
				err    error
			)
			if mode == ModeStrict {
				claims, err = v.ValidateAccessStrict(r.Context(), token)
			} else {
				claims, err = v.ValidateAccess(token)
			}
			if err != nil {
				if errors.Is(err, authcore.ErrStoreUnavailable) || errors.Is(err, authcore.ErrEngineNotReady) {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(authcore.WithAccessClaims(r.Context(), claims)))
		})
	}
}

// RequireAuth is Guard in ModeStateless.
func RequireAuth(v Validator) func(http.Handler) http.Handler {
	return Guard(v, ModeStateless)
}

// RequireStrict is Guard in ModeStrict.
func RequireStrict(v Validator) func(http.Handler) http.Handler {
	return Guard(v, ModeStrict)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}
	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}
	return token, true
}
