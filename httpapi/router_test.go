package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spintune/authcore"
	"github.com/spintune/authcore/store/memstore"
	"github.com/spintune/authcore/totp"
)

const password = "correct-horse-battery"

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := authcore.DefaultConfig()
	cfg.JWT.AccessKey = bytes.Repeat([]byte("a"), 32)
	cfg.JWT.RefreshKey = bytes.Repeat([]byte("r"), 32)
	cfg.Password.BcryptCost = 10

	engine, err := authcore.New().WithConfig(cfg).WithUserStore(memstore.New()).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	srv := httptest.NewServer(NewRouter(engine, Options{Strict: true}))
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, bearer string, body any) (int, map[string]any) {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp.StatusCode, out
}

func tokens(t *testing.T, body map[string]any) (access, refresh string) {
	t.Helper()
	tk, ok := body["tokens"].(map[string]any)
	require.True(t, ok, "tokens missing in %v", body)
	return tk["accessToken"].(string), tk["refreshToken"].(string)
}

func TestRegisterLoginProfile(t *testing.T) {
	srv := newServer(t)

	status, body := call(t, srv, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "alice@example.com", "password": password, "firstName": "Alice",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Len(t, body["backupCodes"], 10)

	status, body = call(t, srv, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": password,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["mfaRequired"])
	access, _ := tokens(t, body)

	status, body = call(t, srv, http.MethodGet, "/auth/me", access, nil)
	require.Equal(t, http.StatusOK, status)
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice@example.com", user["email"])
	assert.Equal(t, "Alice", user["firstName"])
	assert.Equal(t, float64(10), user["backupCodesRemaining"])
}

func TestErrorMapping(t *testing.T) {
	srv := newServer(t)
	reg := map[string]string{"email": "bob@example.com", "password": password}

	status, _ := call(t, srv, http.MethodPost, "/auth/register", "", reg)
	require.Equal(t, http.StatusCreated, status)

	status, body := call(t, srv, http.MethodPost, "/auth/register", "", reg)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "email_taken", body["error"])

	status, body = call(t, srv, http.MethodPost, "/auth/register", "", map[string]string{"email": "nope", "password": password})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_registration", body["error"])

	status, body = call(t, srv, http.MethodPost, "/auth/login", "", map[string]string{"email": "bob@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid_credentials", body["error"])

	status, body = call(t, srv, http.MethodPost, "/auth/login", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "bad_request", body["error"])

	status, _ = call(t, srv, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRefreshRotationAndLogout(t *testing.T) {
	srv := newServer(t)

	status, body := call(t, srv, http.MethodPost, "/auth/register", "", map[string]string{"email": "carol@example.com", "password": password})
	require.Equal(t, http.StatusCreated, status)
	_, refresh := tokens(t, body)

	status, body = call(t, srv, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, status)
	access := body["accessToken"].(string)
	next := body["refreshToken"].(string)

	status, body = call(t, srv, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid_token", body["error"])

	// Reuse revoked the rotated token too.
	status, _ = call(t, srv, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": next})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = call(t, srv, http.MethodPost, "/auth/logout", access, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = call(t, srv, http.MethodGet, "/auth/me", access, nil)
	assert.Equal(t, http.StatusUnauthorized, status, "strict guard rejects after logout")
}

func TestMFAEnrollmentAndLogin(t *testing.T) {
	srv := newServer(t)

	status, body := call(t, srv, http.MethodPost, "/auth/register", "", map[string]string{"email": "dave@example.com", "password": password})
	require.Equal(t, http.StatusCreated, status)
	access, _ := tokens(t, body)
	userID := body["user"].(map[string]any)["id"].(string)

	status, body = call(t, srv, http.MethodPost, "/auth/mfa/setup", access, nil)
	require.Equal(t, http.StatusOK, status)
	secret := body["secret"].(string)
	assert.Contains(t, body["provisioningUri"], "otpauth://totp/")

	tm, err := totp.NewManager(totp.Config{Issuer: "authcore"})
	require.NoError(t, err)
	code, err := tm.CodeAt(secret, time.Now())
	require.NoError(t, err)

	status, body = call(t, srv, http.MethodPost, "/auth/mfa/verify", "", map[string]string{"userId": userID, "code": code})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["enabled"])
	access, _ = tokens(t, body)

	status, body = call(t, srv, http.MethodPost, "/auth/login", "", map[string]string{"email": "dave@example.com", "password": password})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["mfaRequired"])
	assert.Equal(t, userID, body["userId"])
	assert.NotContains(t, body, "tokens")

	status, body = call(t, srv, http.MethodPost, "/mfa/backup-codes", access, map[string]string{"token": "12345"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid_mfa_code", body["error"])

	status, body = call(t, srv, http.MethodPost, "/mfa/backup-codes", access, map[string]string{"token": code})
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["backupCodes"], 10)

	status, _ = call(t, srv, http.MethodPost, "/mfa/disable", access, map[string]string{"token": code})
	assert.Equal(t, http.StatusOK, status)
}
