package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spintune/authcore"
)

type tokenResponse struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

func tokensOf(p authcore.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}

type userResponse struct {
	ID                   string    `json:"id"`
	Email                string    `json:"email"`
	FirstName            string    `json:"firstName,omitempty"`
	LastName             string    `json:"lastName,omitempty"`
	MFAEnabled           bool      `json:"mfaEnabled"`
	BackupCodesRemaining int       `json:"backupCodesRemaining"`
	CreatedAt            time.Time `json:"createdAt"`
}

func userOf(p authcore.Profile) userResponse {
	return userResponse{
		ID:                   p.ID,
		Email:                p.Email,
		FirstName:            p.FirstName,
		LastName:             p.LastName,
		MFAEnabled:           p.MFAEnabled,
		BackupCodesRemaining: p.BackupCodesRemaining,
		CreatedAt:            p.CreatedAt,
	}
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if !decode(w, r, &body) {
		return
	}
	res, err := h.engine.Register(r.Context(), authcore.RegisterRequest{
		Email:     body.Email,
		Password:  body.Password,
		FirstName: body.FirstName,
		LastName:  body.LastName,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":        userOf(res.User),
		"tokens":      tokensOf(res.Tokens),
		"backupCodes": res.BackupCodes,
	})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		MFACode  string `json:"mfaCode"`
	}
	if !decode(w, r, &body) {
		return
	}
	res, err := h.engine.Login(r.Context(), authcore.LoginRequest{
		Email:    body.Email,
		Password: body.Password,
		MFACode:  body.MFACode,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	if res.MFARequired() {
		writeJSON(w, http.StatusOK, map[string]any{"mfaRequired": true, "userId": res.UserID})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mfaRequired": false,
		"userId":      res.UserID,
		"tokens":      tokensOf(res.Tokens),
	})
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decode(w, r, &body) {
		return
	}
	pair, err := h.engine.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokensOf(pair))
}

func (h *handler) verifyMFA(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
		Code   string `json:"code"`
	}
	if !decode(w, r, &body) {
		return
	}
	res, err := h.engine.VerifyMFA(r.Context(), body.UserID, body.Code)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": res.Enabled,
		"tokens":  tokensOf(res.Tokens),
	})
}

func (h *handler) setupMFA(w http.ResponseWriter, r *http.Request) {
	setup, err := h.engine.SetupMFA(r.Context(), authcore.UserIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"secret":          setup.Secret,
		"provisioningUri": setup.ProvisioningURI,
		"qrCodeDataUrl":   setup.QRCodeDataURL,
		"expiresAt":       setup.ExpiresAt,
	})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Logout(r.Context(), authcore.UserIDFromContext(r.Context())); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.engine.Profile(r.Context(), authcore.UserIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": userOf(*p)})
}

type codeBody struct {
	Token string `json:"token"`
}

func (h *handler) disableMFA(w http.ResponseWriter, r *http.Request) {
	var body codeBody
	if !decode(w, r, &body) {
		return
	}
	if err := h.engine.DisableMFA(r.Context(), authcore.UserIDFromContext(r.Context()), body.Token); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mfaEnabled": false})
}

func (h *handler) regenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	var body codeBody
	if !decode(w, r, &body) {
		return
	}
	codes, err := h.engine.RegenerateBackupCodes(r.Context(), authcore.UserIDFromContext(r.Context()), body.Token)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backupCodes": codes})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return false
	}
	return true
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{authcore.ErrInvalidRegistration, http.StatusBadRequest, "invalid_registration"},
	{authcore.ErrDuplicateEmail, http.StatusConflict, "email_taken"},
	{authcore.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{authcore.ErrInvalidMFACode, http.StatusUnauthorized, "invalid_mfa_code"},
	{authcore.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
	{authcore.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{authcore.ErrLoginRateLimited, http.StatusTooManyRequests, "login_rate_limited"},
	{authcore.ErrMFARateLimited, http.StatusTooManyRequests, "mfa_rate_limited"},
	{authcore.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable"},
	{authcore.ErrEngineNotReady, http.StatusServiceUnavailable, "not_ready"},
}

func (h *handler) fail(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				h.logger.Warn("request failed", zap.Error(err))
			}
			writeError(w, m.status, m.code, m.err.Error())
			return
		}
	}
	h.logger.Error("unexpected error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal", "internal error")
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
