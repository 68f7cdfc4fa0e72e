package flows

import (
	"context"
	"errors"
	"strings"
)

// LoginRequest is the flow-local login input.
type LoginRequest struct {
	Email    string
	Password string
	MFACode  string
}

// LoginResult is either an MFA challenge or an authenticated session.
type LoginResult struct {
	UserID      string
	MFARequired bool
	Tokens      Tokens
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Base
	Users        UserLookup
	Session      SessionIssuer
	SecondFactor SecondFactorDeps

	VerifyPassword func(password, encodedHash string) (bool, error)
	// VerifyDummy burns one password verification for unknown emails.
	VerifyDummy func(password string)

	CheckLoginRate     func(ctx context.Context, email string) error
	IncrementLoginRate func(ctx context.Context, email string) error
	ResetLoginRate     func(ctx context.Context, email string) error
	IsRateLimited      func(error) bool
}

func (d *LoginDeps) normalizeLogin() {
	d.normalize()
	d.SecondFactor.normalize()
	if d.VerifyDummy == nil {
		d.VerifyDummy = func(string) {}
	}
	if d.CheckLoginRate == nil {
		d.CheckLoginRate = func(context.Context, string) error { return nil }
	}
	if d.IncrementLoginRate == nil {
		d.IncrementLoginRate = func(context.Context, string) error { return nil }
	}
	if d.ResetLoginRate == nil {
		d.ResetLoginRate = func(context.Context, string) error { return nil }
	}
	if d.IsRateLimited == nil {
		d.IsRateLimited = func(error) bool { return false }
	}
}

// RunLogin checks credentials and then either returns an MFA challenge, checks
// the supplied second factor, or issues a session.
func RunLogin(ctx context.Context, req LoginRequest, deps LoginDeps) (*LoginResult, error) {
	deps.normalizeLogin()
	if deps.Users.FindByEmail == nil ||
		deps.VerifyPassword == nil ||
		!deps.SecondFactor.ready() ||
		!deps.Session.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	email := strings.TrimSpace(req.Email)

	if err := deps.CheckLoginRate(ctx, email); err != nil {
		if deps.IsRateLimited(err) {
			deps.MetricInc(deps.Metrics.LoginRateLimited)
			return nil, deps.Errors.LoginRateLimited
		}
		return nil, err
	}

	user, err := deps.Users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, deps.Errors.UserNotFound) {
			return nil, err
		}
		deps.VerifyDummy(req.Password)
		return nil, failLogin(ctx, email, deps)
	}

	ok, err := deps.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		if err != nil {
			deps.Warn("password verification failed", user.ID, err)
		}
		return nil, failLogin(ctx, email, deps)
	}

	if user.MFAEnabled {
		if strings.TrimSpace(req.MFACode) == "" {
			deps.MetricInc(deps.Metrics.LoginMFAChallenge)
			return &LoginResult{UserID: user.ID, MFARequired: true}, nil
		}
		if _, err := verifySecondFactor(ctx, user.ID, user.MFASecret, req.MFACode, deps.SecondFactor, deps.Base); err != nil {
			deps.MetricInc(deps.Metrics.LoginFailure)
			return nil, err
		}
	}

	if err := deps.ResetLoginRate(ctx, email); err != nil {
		deps.Warn("login limiter reset failed", user.ID, err)
	}

	tokens, err := issueSession(ctx, user.ID, deps.Session, deps.Warn)
	if err != nil {
		return nil, err
	}
	deps.MetricInc(deps.Metrics.LoginSuccess)
	return &LoginResult{UserID: user.ID, Tokens: tokens}, nil
}

func failLogin(ctx context.Context, email string, deps LoginDeps) error {
	deps.MetricInc(deps.Metrics.LoginFailure)
	if err := deps.IncrementLoginRate(ctx, email); err != nil {
		if deps.IsRateLimited(err) {
			deps.MetricInc(deps.Metrics.LoginRateLimited)
			return deps.Errors.LoginRateLimited
		}
		deps.Warn("login limiter update failed", "", err)
	}
	return deps.Errors.InvalidCredentials
}
