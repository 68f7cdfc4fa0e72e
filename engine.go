package authcore

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spintune/authcore/internal/events"
	"github.com/spintune/authcore/internal/flows"
	"github.com/spintune/authcore/internal/limiters"
	"github.com/spintune/authcore/internal/stores"
	"github.com/spintune/authcore/jwt"
	"github.com/spintune/authcore/totp"
)

// Engine is the authentication orchestrator. It is safe for concurrent use
// and holds no per-user state of its own: everything lives in the UserStore
// and the EphemeralStore.
type Engine struct {
	config       Config
	users        UserStore
	ephemeral    EphemeralStore
	redisBacked  bool
	sessions     *stores.SessionTracker
	staging      *stores.SetupStaging
	issuer       *jwt.Issuer
	totp         *totp.Manager
	hasher       PasswordHasher
	dummyHash    string
	loginLimiter *limiters.Attempts
	mfaLimiter   *limiters.Attempts
	events       *events.Dispatcher
	metrics      *Metrics
	logger       *zap.Logger
	now          func() time.Time
	flow         flows.Service
	closed       atomic.Bool
}

func (e *Engine) ready() error {
	if e == nil || e.closed.Load() || !e.flow.Initialized() {
		return ErrEngineNotReady
	}
	return nil
}

// Close drains pending events and stops the dispatcher. Further calls on the
// engine return ErrEngineNotReady. Close is idempotent.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.events.Close()
	_ = e.logger.Sync()
}

// EventsDropped reports events lost to a full buffer or a cancelled context.
func (e *Engine) EventsDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.events.Dropped()
}

// EventsFailed reports events the publisher rejected.
func (e *Engine) EventsFailed() uint64 {
	if e == nil {
		return 0
	}
	return e.events.Failed()
}

// MetricsSnapshot returns a point-in-time copy of every counter and histogram.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Register creates a user, its initial backup codes and its first session.
// It returns ErrDuplicateEmail when the email is taken and
// ErrInvalidRegistration for malformed input.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	res, err := e.flow.Register(ctx, flows.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			e.metricInc(MetricRegisterDuplicate)
		}
		return nil, err
	}

	return &RegisterResult{
		User:        profileOf(res.User, len(res.BackupCodes)),
		Tokens:      tokenPairOf(res.Tokens),
		BackupCodes: res.BackupCodes,
	}, nil
}

// Login checks credentials. For users with MFA enabled and no MFACode it
// returns an MFA challenge without tokens; with an MFACode it accepts either
// an unused backup code or a current TOTP code.
//
// Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	res, err := e.flow.Login(ctx, flows.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
		MFACode:  req.MFACode,
	})
	if err != nil {
		return nil, err
	}
	if res.MFARequired {
		return &LoginResult{State: StateMFAChallenge, UserID: res.UserID}, nil
	}
	return &LoginResult{State: StateAuthenticated, UserID: res.UserID, Tokens: tokenPairOf(res.Tokens)}, nil
}

// Refresh exchanges a refresh token for a new pair. Every refresh token is
// single-use: presenting one again fails with ErrInvalidToken and, with
// Refresh.RevokeOnReuse, revokes every refresh token of its user.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if err := e.ready(); err != nil {
		return TokenPair{}, err
	}
	res := e.flow.Refresh(ctx, refreshToken)
	if res.Err != nil {
		if res.Failure == flows.RefreshFailureReuse {
			e.logger.Warn("refresh token reuse detected",
				zap.String("user_id", res.UserID),
				zap.Int("revoked", res.Revoked),
			)
		}
		return TokenPair{}, res.Err
	}
	return tokenPairOf(res.Tokens), nil
}

// Logout revokes every refresh token of the user and clears its session
// marker. Access tokens stay valid for ValidateAccess until they expire but
// fail ValidateAccessStrict immediately.
func (e *Engine) Logout(ctx context.Context, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.flow.Logout(ctx, userID)
}
