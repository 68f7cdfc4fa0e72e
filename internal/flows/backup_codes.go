package flows

import (
	"context"
	"strconv"
)

// BackupCodeDeps captures backup-code regeneration dependencies.
type BackupCodeDeps struct {
	Base
	Users        UserLookup
	SecondFactor SecondFactorDeps

	GenerateBackupCodes func() ([]string, error)
	// ReplaceBackupCodes swaps the whole set; the host hashes the plaintext
	// codes against userID.
	ReplaceBackupCodes func(ctx context.Context, userID string, codes []string) error
}

// RunRegenerateBackupCodes replaces every backup code of an MFA-enabled user
// after checking a current TOTP or backup code. The new codes are returned
// in plaintext once.
func RunRegenerateBackupCodes(ctx context.Context, userID, code string, deps BackupCodeDeps) ([]string, error) {
	deps.normalize()
	deps.SecondFactor.normalize()
	if deps.Users.FindByID == nil ||
		deps.GenerateBackupCodes == nil ||
		deps.ReplaceBackupCodes == nil ||
		!deps.SecondFactor.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	user, err := findUser(ctx, userID, deps.Users, deps.Errors)
	if err != nil {
		return nil, err
	}
	if !user.MFAEnabled {
		return nil, deps.Errors.InvalidMFACode
	}
	if _, err := verifySecondFactor(ctx, user.ID, user.MFASecret, code, deps.SecondFactor, deps.Base); err != nil {
		return nil, err
	}

	codes, err := deps.GenerateBackupCodes()
	if err != nil {
		return nil, err
	}
	if err := deps.ReplaceBackupCodes(ctx, user.ID, codes); err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.BackupCodesRegenerated)
	deps.Emit(ctx, deps.Events.BackupCodesRegenerated, user.ID, map[string]string{"count": strconv.Itoa(len(codes))})
	return codes, nil
}
