package authcore

import (
	"context"
	"time"

	"github.com/spintune/authcore/internal/flows"
	"github.com/spintune/authcore/jwt"
)

// ValidateAccess verifies an access token's signature, expiry, issuer,
// audience and kind. It touches no store.
func (e *Engine) ValidateAccess(token string) (*AccessClaims, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	start := time.Now()
	info, err := e.flow.ValidateAccess(token)
	e.metrics.Observe(MetricValidateLatency, time.Since(start))
	if err != nil {
		return nil, err
	}
	return accessClaimsOf(info), nil
}

// ValidateAccessStrict is ValidateAccess plus a check that the token is the
// user's current session. Tokens issued before the latest login, refresh or
// logout fail with ErrInvalidToken.
func (e *Engine) ValidateAccessStrict(ctx context.Context, token string) (*AccessClaims, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	start := time.Now()
	info, err := e.flow.ValidateAccessStrict(ctx, token)
	e.metrics.Observe(MetricValidateLatency, time.Since(start))
	if err != nil {
		return nil, err
	}
	return accessClaimsOf(info), nil
}

func (e *Engine) signPair(userID string) (flows.Tokens, error) {
	p, err := e.issuer.Issue(userID)
	if err != nil {
		return flows.Tokens{}, err
	}
	return flows.Tokens{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		AccessID:         p.AccessID,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}, nil
}

func (e *Engine) storeRefresh(ctx context.Context, userID string, t flows.Tokens) error {
	return e.users.AppendRefreshToken(ctx, userID, refreshRecordOf(t), e.config.Refresh.MaxPerUser)
}

func (e *Engine) rotateRefresh(ctx context.Context, userID, presented string, next flows.Tokens) (bool, error) {
	return e.users.RotateRefreshToken(ctx, userID, jwt.HashToken(presented), refreshRecordOf(next), e.config.Refresh.MaxPerUser)
}

func (e *Engine) parseRefresh(token string) (string, error) {
	claims, err := e.issuer.ParseRefresh(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (e *Engine) parseAccess(token string) (flows.AccessInfo, error) {
	claims, err := e.issuer.ParseAccess(token)
	if err != nil {
		return flows.AccessInfo{}, err
	}
	info := flows.AccessInfo{UserID: claims.Subject, TokenID: claims.ID}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

func refreshRecordOf(t flows.Tokens) RefreshTokenRecord {
	return RefreshTokenRecord{Hash: jwt.HashToken(t.RefreshToken), ExpiresAt: t.RefreshExpiresAt}
}

func tokenPairOf(t flows.Tokens) TokenPair {
	return TokenPair{
		AccessToken:      t.AccessToken,
		RefreshToken:     t.RefreshToken,
		AccessExpiresAt:  t.AccessExpiresAt,
		RefreshExpiresAt: t.RefreshExpiresAt,
	}
}

func accessClaimsOf(info flows.AccessInfo) *AccessClaims {
	return &AccessClaims{
		UserID:    info.UserID,
		TokenID:   info.TokenID,
		IssuedAt:  info.IssuedAt,
		ExpiresAt: info.ExpiresAt,
	}
}
