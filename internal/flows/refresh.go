package flows

import (
	"context"
	"errors"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureUserNotFound
	RefreshFailureSign
	RefreshFailureReuse
	RefreshFailureRotate
)

// RefreshResult carries either the issued token pair or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	UserID  string
	Tokens  Tokens
	// Revoked is the number of tokens dropped after a detected reuse.
	Revoked int
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Base
	Users   UserLookup
	Session SessionIssuer

	// RevokeOnReuse drops every refresh token of a user that presents a
	// verified token which is no longer on record.
	RevokeOnReuse bool

	ParseRefresh func(token string) (userID string, err error)
	// Rotate atomically swaps presented for next; false means presented was
	// not on record.
	Rotate    func(ctx context.Context, userID, presented string, next Tokens) (bool, error)
	RevokeAll func(ctx context.Context, userID string) (int, error)
}

// RunRefresh exchanges a refresh token for a new pair. Each refresh token is
// accepted once.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	deps.normalize()
	if deps.ParseRefresh == nil || deps.Users.FindByID == nil || deps.Rotate == nil || deps.Session.SignPair == nil {
		return RefreshResult{Failure: RefreshFailureRotate, Err: deps.Errors.EngineNotReady}
	}

	userID, err := deps.ParseRefresh(refreshToken)
	if err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		return RefreshResult{Failure: RefreshFailureDecode, Err: errors.Join(deps.Errors.InvalidToken, err)}
	}

	if _, err := deps.Users.FindByID(ctx, userID); err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		if errors.Is(err, deps.Errors.UserNotFound) {
			return RefreshResult{Failure: RefreshFailureUserNotFound, Err: deps.Errors.InvalidToken, UserID: userID}
		}
		return RefreshResult{Failure: RefreshFailureRotate, Err: err, UserID: userID}
	}

	next, err := deps.Session.SignPair(userID)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureSign, Err: err, UserID: userID}
	}

	rotated, err := deps.Rotate(ctx, userID, refreshToken, next)
	if err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		return RefreshResult{Failure: RefreshFailureRotate, Err: err, UserID: userID}
	}
	if !rotated {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		deps.MetricInc(deps.Metrics.RefreshReuseDetected)
		result := RefreshResult{Failure: RefreshFailureReuse, Err: deps.Errors.InvalidToken, UserID: userID}
		if deps.RevokeOnReuse && deps.RevokeAll != nil {
			n, err := deps.RevokeAll(ctx, userID)
			if err != nil {
				deps.Warn("refresh reuse revocation failed", userID, err)
			}
			result.Revoked = n
		}
		return result
	}

	track(ctx, userID, next.AccessID, deps.Session, deps.Warn)
	deps.MetricInc(deps.Metrics.RefreshSuccess)
	return RefreshResult{UserID: userID, Tokens: next}
}
