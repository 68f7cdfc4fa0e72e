package flows

import (
	"context"
	"errors"
)

// SessionIssuer signs, persists and tracks token pairs.
type SessionIssuer struct {
	SignPair     func(userID string) (Tokens, error)
	StoreRefresh func(ctx context.Context, userID string, tokens Tokens) error
	Track        func(ctx context.Context, userID, sessionID string) error
}

func (s SessionIssuer) ready() bool {
	return s.SignPair != nil && s.StoreRefresh != nil
}

// issueSession returns a pair only once its refresh token is on record. The
// session marker is advisory: a tracking failure is reported through warn.
func issueSession(ctx context.Context, userID string, s SessionIssuer, warn func(string, string, error)) (Tokens, error) {
	if !s.ready() {
		return Tokens{}, errors.New("flows: session issuer not wired")
	}
	tokens, err := s.SignPair(userID)
	if err != nil {
		return Tokens{}, err
	}
	if err := s.StoreRefresh(ctx, userID, tokens); err != nil {
		return Tokens{}, err
	}
	track(ctx, userID, tokens.AccessID, s, warn)
	return tokens, nil
}

func track(ctx context.Context, userID, sessionID string, s SessionIssuer, warn func(string, string, error)) {
	if s.Track == nil {
		return
	}
	if err := s.Track(ctx, userID, sessionID); err != nil {
		warn("session marker update failed", userID, err)
	}
}
