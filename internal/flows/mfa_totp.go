package flows

import (
	"context"
	"errors"
	"time"
)

// MFASetup is the flow-local pending enrollment.
type MFASetup struct {
	Secret          string
	ProvisioningURI string
	QRCodeDataURL   string
	ExpiresAt       time.Time
}

// MFAVerifyResult reports whether a pending enrollment was confirmed.
type MFAVerifyResult struct {
	Enabled bool
	Tokens  Tokens
}

// Staging holds TOTP secrets awaiting confirmation.
type Staging struct {
	TTL     time.Duration
	Stage   func(ctx context.Context, userID, secret string) error
	Pending func(ctx context.Context, userID string) (string, bool, error)
	Clear   func(ctx context.Context, userID string) error
}

// MFADeps captures MFA setup, verify and disable dependencies.
type MFADeps struct {
	Base
	Users        UserLookup
	Session      SessionIssuer
	SecondFactor SecondFactorDeps
	Staging      Staging

	// GenerateSecret returns a new secret and its provisioning URI.
	GenerateSecret func(accountName string) (secret, uri string, err error)
	// RenderQR turns a provisioning URI into an image data URL. Optional.
	RenderQR func(uri string) (string, error)

	EnableMFA  func(ctx context.Context, userID, secret string) (bool, error)
	DisableMFA func(ctx context.Context, userID string) error
}

func (d *MFADeps) normalizeMFA() {
	d.normalize()
	d.SecondFactor.normalize()
}

func (d MFADeps) ready() bool {
	return d.Users.FindByID != nil &&
		d.Staging.Stage != nil && d.Staging.Pending != nil && d.Staging.Clear != nil &&
		d.GenerateSecret != nil &&
		d.EnableMFA != nil && d.DisableMFA != nil &&
		d.SecondFactor.ready() && d.Session.ready()
}

func findUser(ctx context.Context, userID string, users UserLookup, errs Errors) (UserRecord, error) {
	if userID == "" {
		return UserRecord{}, errs.UserNotFound
	}
	user, err := users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errs.UserNotFound) {
			return UserRecord{}, errs.UserNotFound
		}
		return UserRecord{}, err
	}
	return user, nil
}

// RunSetupMFA stages a fresh TOTP secret for the user, replacing any earlier
// pending one. Stored MFA state is untouched until RunVerifyMFA confirms it.
func RunSetupMFA(ctx context.Context, userID string, deps MFADeps) (*MFASetup, error) {
	deps.normalizeMFA()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	user, err := findUser(ctx, userID, deps.Users, deps.Errors)
	if err != nil {
		return nil, err
	}

	secret, uri, err := deps.GenerateSecret(user.Email)
	if err != nil {
		return nil, err
	}
	if err := deps.Staging.Stage(ctx, user.ID, secret); err != nil {
		return nil, err
	}

	setup := &MFASetup{
		Secret:          secret,
		ProvisioningURI: uri,
		ExpiresAt:       deps.Now().Add(deps.Staging.TTL),
	}
	if deps.RenderQR != nil {
		if qr, err := deps.RenderQR(uri); err != nil {
			deps.Warn("qr code rendering failed", user.ID, err)
		} else {
			setup.QRCodeDataURL = qr
		}
	}
	deps.MetricInc(deps.Metrics.MFASetupStarted)
	return setup, nil
}

// RunVerifyMFA confirms a pending enrollment when code matches the staged
// secret. Otherwise, for users with MFA enabled, it checks code as a regular
// second factor. Either success opens a session.
func RunVerifyMFA(ctx context.Context, userID, code string, deps MFADeps) (*MFAVerifyResult, error) {
	deps.normalizeMFA()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	user, err := findUser(ctx, userID, deps.Users, deps.Errors)
	if err != nil {
		return nil, err
	}
	if err := checkMFALimit(ctx, user.ID, deps.SecondFactor, deps.Base); err != nil {
		return nil, err
	}

	staged, ok, err := deps.Staging.Pending(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if ok && deps.SecondFactor.VerifyTOTP(staged, code, deps.Now()) {
		changed, err := deps.EnableMFA(ctx, user.ID, staged)
		if err != nil {
			return nil, err
		}
		if err := deps.Staging.Clear(ctx, user.ID); err != nil {
			deps.Warn("mfa staging cleanup failed", user.ID, err)
		}
		acceptMFA(ctx, user.ID, deps.SecondFactor, deps.Base)
		if changed {
			deps.MetricInc(deps.Metrics.MFAEnabled)
			deps.Emit(ctx, deps.Events.MFAEnabled, user.ID, nil)
		}

		tokens, err := issueSession(ctx, user.ID, deps.Session, deps.Warn)
		if err != nil {
			return nil, err
		}
		return &MFAVerifyResult{Enabled: true, Tokens: tokens}, nil
	}

	if !user.MFAEnabled {
		return nil, rejectMFA(ctx, user.ID, deps.SecondFactor, deps.Base)
	}
	if _, err := verifySecondFactor(ctx, user.ID, user.MFASecret, code, deps.SecondFactor, deps.Base); err != nil {
		return nil, err
	}

	tokens, err := issueSession(ctx, user.ID, deps.Session, deps.Warn)
	if err != nil {
		return nil, err
	}
	return &MFAVerifyResult{Tokens: tokens}, nil
}

// RunDisableMFA turns MFA off after checking a current TOTP or backup code.
// The flag, the secret and all backup codes are cleared together.
func RunDisableMFA(ctx context.Context, userID, code string, deps MFADeps) error {
	deps.normalizeMFA()
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}

	user, err := findUser(ctx, userID, deps.Users, deps.Errors)
	if err != nil {
		return err
	}
	if !user.MFAEnabled {
		return deps.Errors.InvalidMFACode
	}
	if _, err := verifySecondFactor(ctx, user.ID, user.MFASecret, code, deps.SecondFactor, deps.Base); err != nil {
		return err
	}

	if err := deps.DisableMFA(ctx, user.ID); err != nil {
		return err
	}
	if err := deps.Staging.Clear(ctx, user.ID); err != nil {
		deps.Warn("mfa staging cleanup failed", user.ID, err)
	}

	deps.MetricInc(deps.Metrics.MFADisabled)
	deps.Emit(ctx, deps.Events.MFADisabled, user.ID, nil)
	return nil
}
