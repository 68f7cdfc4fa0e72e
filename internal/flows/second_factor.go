package flows

import (
	"context"
	"strings"
	"time"

	"github.com/spintune/authcore/backupcode"
)

// Factor identifies which second factor accepted a code.
type Factor int

const (
	FactorNone Factor = iota
	FactorTOTP
	FactorBackupCode
)

// SecondFactorDeps verifies TOTP and backup codes for one user.
type SecondFactorDeps struct {
	BackupCodeLength int

	VerifyTOTP func(secret, code string, now time.Time) bool
	// ConsumeBackupCode removes the canonical code and reports whether it was
	// present.
	ConsumeBackupCode func(ctx context.Context, userID, canonical string) (bool, error)

	CheckLimit    func(ctx context.Context, userID string) error
	RecordFailure func(ctx context.Context, userID string) error
	ResetLimit    func(ctx context.Context, userID string) error
	IsRateLimited func(error) bool
}

func (d *SecondFactorDeps) normalize() {
	if d.BackupCodeLength <= 0 {
		d.BackupCodeLength = backupcode.DefaultLength
	}
	if d.CheckLimit == nil {
		d.CheckLimit = func(context.Context, string) error { return nil }
	}
	if d.RecordFailure == nil {
		d.RecordFailure = func(context.Context, string) error { return nil }
	}
	if d.ResetLimit == nil {
		d.ResetLimit = func(context.Context, string) error { return nil }
	}
	if d.IsRateLimited == nil {
		d.IsRateLimited = func(error) bool { return false }
	}
}

func (d SecondFactorDeps) ready() bool {
	return d.VerifyTOTP != nil && d.ConsumeBackupCode != nil
}

// checkMFALimit maps an exhausted budget to MFARateLimited. Backend failures
// are returned as they are.
func checkMFALimit(ctx context.Context, userID string, d SecondFactorDeps, b Base) error {
	if err := d.CheckLimit(ctx, userID); err != nil {
		if d.IsRateLimited(err) {
			b.MetricInc(b.Metrics.MFARateLimited)
			return b.Errors.MFARateLimited
		}
		return err
	}
	return nil
}

// rejectMFA records the failure and returns the outcome the caller sees.
func rejectMFA(ctx context.Context, userID string, d SecondFactorDeps, b Base) error {
	b.MetricInc(b.Metrics.MFAFailure)
	if err := d.RecordFailure(ctx, userID); err != nil {
		if d.IsRateLimited(err) {
			b.MetricInc(b.Metrics.MFARateLimited)
			return b.Errors.MFARateLimited
		}
		b.Warn("mfa limiter update failed", userID, err)
	}
	return b.Errors.InvalidMFACode
}

func acceptMFA(ctx context.Context, userID string, d SecondFactorDeps, b Base) {
	if err := d.ResetLimit(ctx, userID); err != nil {
		b.Warn("mfa limiter reset failed", userID, err)
	}
}

// verifySecondFactor checks code against the user's enabled factors. Input
// shaped like a backup code is tried as one first and falls through to TOTP
// when no such code is on record. A consumed backup code is gone even if the
// caller fails afterwards.
func verifySecondFactor(ctx context.Context, userID, secret, code string, d SecondFactorDeps, b Base) (Factor, error) {
	if err := checkMFALimit(ctx, userID, d, b); err != nil {
		return FactorNone, err
	}

	if canonical := backupcode.Canonicalize(code); backupcode.LooksLike(canonical, d.BackupCodeLength) {
		consumed, err := d.ConsumeBackupCode(ctx, userID, canonical)
		if err != nil {
			return FactorNone, err
		}
		if consumed {
			b.MetricInc(b.Metrics.BackupCodeUsed)
			acceptMFA(ctx, userID, d, b)
			return FactorBackupCode, nil
		}
	}

	if secret != "" && d.VerifyTOTP(secret, strings.TrimSpace(code), b.Now()) {
		acceptMFA(ctx, userID, d, b)
		return FactorTOTP, nil
	}

	return FactorNone, rejectMFA(ctx, userID, d, b)
}
