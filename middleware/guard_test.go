package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spintune/authcore"
)

type fakeValidator struct {
	claims    *authcore.AccessClaims
	err       error
	strictErr error
	strictHit bool
}

func (f *fakeValidator) ValidateAccess(token string) (*authcore.AccessClaims, error) {
	if token != "good" {
		return nil, authcore.ErrInvalidToken
	}
	return f.claims, f.err
}

func (f *fakeValidator) ValidateAccessStrict(_ context.Context, token string) (*authcore.AccessClaims, error) {
	f.strictHit = true
	if f.strictErr != nil {
		return nil, f.strictErr
	}
	return f.ValidateAccess(token)
}

func serve(t *testing.T, mw func(http.Handler) http.Handler, header string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var seen string
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = authcore.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func TestRequireAuth(t *testing.T) {
	v := &fakeValidator{claims: &authcore.AccessClaims{UserID: "u1"}}

	rec, seen := serve(t, RequireAuth(v), "Bearer good")
	if rec.Code != http.StatusNoContent || seen != "u1" {
		t.Fatalf("expected pass-through with u1, got %d %q", rec.Code, seen)
	}
	if v.strictHit {
		t.Fatal("stateless guard must not call strict validation")
	}

	rec, _ = serve(t, RequireAuth(v), "bearer good")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("scheme match should be case-insensitive, got %d", rec.Code)
	}
}

func TestRequireAuthRejects(t *testing.T) {
	v := &fakeValidator{claims: &authcore.AccessClaims{UserID: "u1"}}
	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer bad"} {
		rec, seen := serve(t, RequireAuth(v), header)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%q: expected 401, got %d", header, rec.Code)
		}
		if seen != "" {
			t.Fatalf("%q: handler must not run", header)
		}
		if rec.Header().Get("WWW-Authenticate") == "" {
			t.Fatalf("%q: expected WWW-Authenticate header", header)
		}
	}
}

func TestRequireStrict(t *testing.T) {
	v := &fakeValidator{claims: &authcore.AccessClaims{UserID: "u1"}}
	rec, seen := serve(t, RequireStrict(v), "Bearer good")
	if rec.Code != http.StatusNoContent || seen != "u1" || !v.strictHit {
		t.Fatalf("strict guard: code=%d user=%q strict=%v", rec.Code, seen, v.strictHit)
	}

	v.strictErr = authcore.ErrInvalidToken
	rec, _ = serve(t, RequireStrict(v), "Bearer good")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("superseded session: expected 401, got %d", rec.Code)
	}

	v.strictErr = authcore.ErrStoreUnavailable
	rec, _ = serve(t, RequireStrict(v), "Bearer good")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("store outage: expected 503, got %d", rec.Code)
	}
}

func TestGuardNilValidator(t *testing.T) {
	rec, _ := serve(t, Guard(nil, ModeStateless), "Bearer good")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
