package authcore

import (
	"strings"

	"github.com/spintune/authcore/internal/security"
)

// SecurityReport summarizes the effective security settings of an engine.
type SecurityReport = security.Report

// SecurityReport returns the posture of e's configuration. It performs no I/O.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	cfg := e.config
	alg := strings.ToLower(cfg.Password.Algorithm)
	if alg == "" {
		alg = "argon2id"
	}

	return security.BuildReport(security.ReportInput{
		SigningAlgorithm:  strings.ToLower(cfg.JWT.SigningMethod),
		AccessTTL:         cfg.JWT.AccessTTL,
		RefreshTTL:        cfg.JWT.RefreshTTL,
		SessionTTL:        cfg.Session.TTL,
		RevokeOnReuse:     cfg.Refresh.RevokeOnReuse,
		MaxRefreshPerUser: cfg.Refresh.MaxPerUser,
		Password: security.PasswordReport{
			Algorithm:  alg,
			MinLength:  cfg.Password.MinLength,
			BcryptCost: cfg.Password.BcryptCost,
			Argon2Time: cfg.Password.Argon2.Time,
			Argon2KiB:  cfg.Password.Argon2.Memory,
		},
		TOTPDigits:        cfg.TOTP.Digits,
		TOTPSkew:          cfg.TOTP.Skew,
		TOTPAlgorithm:     strings.ToUpper(cfg.TOTP.Algorithm),
		BackupCodeCount:   cfg.BackupCodes.Count,
		BackupCodeLength:  cfg.BackupCodes.Length,
		LoginLimitEnabled: cfg.Limits.Login.Enabled,
		LoginMaxAttempts:  cfg.Limits.Login.MaxAttempts,
		MFALimitEnabled:   cfg.Limits.MFA.Enabled,
		MFAMaxAttempts:    cfg.Limits.MFA.MaxAttempts,
		RedisBacked:       e.redisBacked,
	})
}
