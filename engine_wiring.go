package authcore

import (
	"context"

	"github.com/google/uuid"

	"github.com/spintune/authcore/backupcode"
	"github.com/spintune/authcore/internal/flows"
	"github.com/spintune/authcore/internal/limiters"
)

// wireFlows builds the flow dependency sets once, at Build time.
func (e *Engine) wireFlows() flows.Deps {
	base := flows.Base{
		Now: e.now,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		Emit: e.emit,
		Warn: e.warn,
		Errors: flows.Errors{
			EngineNotReady:      ErrEngineNotReady,
			DuplicateEmail:      ErrDuplicateEmail,
			InvalidRegistration: ErrInvalidRegistration,
			InvalidCredentials:  ErrInvalidCredentials,
			InvalidMFACode:      ErrInvalidMFACode,
			InvalidToken:        ErrInvalidToken,
			UserNotFound:        ErrUserNotFound,
			LoginRateLimited:    ErrLoginRateLimited,
			MFARateLimited:      ErrMFARateLimited,
		},
		Metrics: flows.Metrics{
			RegisterSuccess:        int(MetricRegisterSuccess),
			LoginSuccess:           int(MetricLoginSuccess),
			LoginFailure:           int(MetricLoginFailure),
			LoginMFAChallenge:      int(MetricLoginMFAChallenge),
			LoginRateLimited:       int(MetricLoginRateLimited),
			RefreshSuccess:         int(MetricRefreshSuccess),
			RefreshFailure:         int(MetricRefreshFailure),
			RefreshReuseDetected:   int(MetricRefreshReuseDetected),
			MFASetupStarted:        int(MetricMFASetupStarted),
			MFAEnabled:             int(MetricMFAEnabled),
			MFADisabled:            int(MetricMFADisabled),
			MFAFailure:             int(MetricMFAFailure),
			MFARateLimited:         int(MetricMFARateLimited),
			BackupCodeUsed:         int(MetricBackupCodeUsed),
			BackupCodesRegenerated: int(MetricBackupCodesRegenerated),
			Logout:                 int(MetricLogout),
		},
		Events: flows.Events{
			UserCreated:            EventUserCreated,
			MFAEnabled:             EventMFAEnabled,
			MFADisabled:            EventMFADisabled,
			Logout:                 EventLogout,
			BackupCodesRegenerated: EventBackupCodesRegenerated,
		},
	}

	users := flows.UserLookup{
		FindByEmail: func(ctx context.Context, email string) (flows.UserRecord, error) {
			u, err := e.users.FindByEmail(ctx, email)
			return recordOf(u), err
		},
		FindByID: func(ctx context.Context, userID string) (flows.UserRecord, error) {
			u, err := e.users.FindByID(ctx, userID)
			return recordOf(u), err
		},
	}

	session := flows.SessionIssuer{
		SignPair:     e.signPair,
		StoreRefresh: e.storeRefresh,
		Track:        e.sessions.Track,
	}

	secondFactor := flows.SecondFactorDeps{
		BackupCodeLength: e.config.BackupCodes.Length,
		VerifyTOTP:       e.totp.Verify,
		ConsumeBackupCode: func(ctx context.Context, userID, canonical string) (bool, error) {
			return e.users.ConsumeBackupCode(ctx, userID, backupcode.Hash(userID, canonical))
		},
		CheckLimit: func(ctx context.Context, userID string) error {
			return storeError(e.mfaLimiter.Check(ctx, userID))
		},
		RecordFailure: func(ctx context.Context, userID string) error {
			return storeError(e.mfaLimiter.RecordFailure(ctx, userID))
		},
		ResetLimit:    e.mfaLimiter.Reset,
		IsRateLimited: limiters.IsLimited,
	}

	var renderQR func(string) (string, error)
	if e.config.TOTP.QRCodeSize > 0 {
		renderQR = e.renderQR
	}

	generateCodes := func() ([]string, error) {
		return backupcode.Generate(e.config.BackupCodes.Count, e.config.BackupCodes.Length, nil)
	}

	return flows.Deps{
		Register: flows.RegisterDeps{
			Base:                base,
			Users:               users,
			Session:             session,
			MinPasswordLength:   e.config.Password.MinLength,
			NewUserID:           uuid.NewString,
			HashPassword:        e.hasher.Hash,
			GenerateBackupCodes: generateCodes,
			Create: func(ctx context.Context, rec flows.UserRecord, codes []string) (flows.UserRecord, error) {
				u, err := e.users.Create(ctx, userOf(rec), backupcode.HashAll(rec.ID, codes))
				return recordOf(u), err
			},
		},
		Login: flows.LoginDeps{
			Base:           base,
			Users:          users,
			Session:        session,
			SecondFactor:   secondFactor,
			VerifyPassword: e.hasher.Verify,
			VerifyDummy: func(password string) {
				_, _ = e.hasher.Verify(password, e.dummyHash)
			},
			CheckLoginRate: func(ctx context.Context, email string) error {
				return storeError(e.loginLimiter.Check(ctx, email))
			},
			IncrementLoginRate: func(ctx context.Context, email string) error {
				return storeError(e.loginLimiter.RecordFailure(ctx, email))
			},
			ResetLoginRate: e.loginLimiter.Reset,
			IsRateLimited:  limiters.IsLimited,
		},
		Refresh: flows.RefreshDeps{
			Base:          base,
			Users:         users,
			Session:       session,
			RevokeOnReuse: e.config.Refresh.RevokeOnReuse,
			ParseRefresh:  e.parseRefresh,
			Rotate:        e.rotateRefresh,
			RevokeAll:     e.users.RevokeRefreshTokens,
		},
		Logout: flows.LogoutDeps{
			Base:      base,
			Users:     users,
			RevokeAll: e.users.RevokeRefreshTokens,
			Untrack:   e.sessions.Untrack,
		},
		MFA: flows.MFADeps{
			Base:         base,
			Users:        users,
			Session:      session,
			SecondFactor: secondFactor,
			Staging: flows.Staging{
				TTL:     e.staging.TTL(),
				Stage:   e.staging.Stage,
				Pending: e.staging.Pending,
				Clear:   e.staging.Clear,
			},
			GenerateSecret: func(account string) (string, string, error) {
				key, err := e.totp.Generate(account)
				if err != nil {
					return "", "", err
				}
				return key.Secret, key.URI, nil
			},
			RenderQR:   renderQR,
			EnableMFA:  e.users.EnableMFA,
			DisableMFA: e.users.DisableMFA,
		},
		BackupCodes: flows.BackupCodeDeps{
			Base:                base,
			Users:               users,
			SecondFactor:        secondFactor,
			GenerateBackupCodes: generateCodes,
			ReplaceBackupCodes: func(ctx context.Context, userID string, codes []string) error {
				return e.users.ReplaceBackupCodes(ctx, userID, backupcode.HashAll(userID, codes))
			},
		},
		Validate: flows.ValidateDeps{
			Errors:      base.Errors,
			ParseAccess: e.parseAccess,
			Current:     e.sessions.Current,
		},
		Profile: flows.ProfileDeps{
			Errors:           base.Errors,
			Users:            users,
			CountBackupCodes: e.users.CountBackupCodes,
		},
	}
}
