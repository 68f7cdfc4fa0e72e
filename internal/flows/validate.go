package flows

import (
	"context"
	"errors"
	"time"
)

// AccessInfo is the verified content of an access token.
type AccessInfo struct {
	UserID    string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ValidateDeps captures access-token validation dependencies.
type ValidateDeps struct {
	Errors Errors

	ParseAccess func(token string) (AccessInfo, error)
	// Current returns the session id tracked for the user. Strict mode only.
	Current func(ctx context.Context, userID string) (string, bool, error)
}

// RunValidateAccess verifies the token signature and claims only.
func RunValidateAccess(token string, deps ValidateDeps) (AccessInfo, error) {
	if deps.ParseAccess == nil {
		return AccessInfo{}, deps.Errors.EngineNotReady
	}
	info, err := deps.ParseAccess(token)
	if err != nil {
		return AccessInfo{}, errors.Join(deps.Errors.InvalidToken, err)
	}
	return info, nil
}

// RunValidateAccessStrict additionally requires the token to be the user's
// tracked session. A newer login or a logout invalidates older tokens.
func RunValidateAccessStrict(ctx context.Context, token string, deps ValidateDeps) (AccessInfo, error) {
	if deps.Current == nil {
		return AccessInfo{}, deps.Errors.EngineNotReady
	}
	info, err := RunValidateAccess(token, deps)
	if err != nil {
		return AccessInfo{}, err
	}
	sid, ok, err := deps.Current(ctx, info.UserID)
	if err != nil {
		return AccessInfo{}, err
	}
	if !ok || sid != info.TokenID {
		return AccessInfo{}, deps.Errors.InvalidToken
	}
	return info, nil
}
