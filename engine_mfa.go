package authcore

import (
	"context"

	"github.com/spintune/authcore/totp"
)

// SetupMFA stages a new TOTP secret for the user and returns the enrollment
// material. The secret is not active until VerifyMFA confirms it; calling
// SetupMFA again replaces the pending secret.
func (e *Engine) SetupMFA(ctx context.Context, userID string) (*MFASetup, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	res, err := e.flow.SetupMFA(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &MFASetup{
		Secret:          res.Secret,
		ProvisioningURI: res.ProvisioningURI,
		QRCodeDataURL:   res.QRCodeDataURL,
		ExpiresAt:       res.ExpiresAt,
	}, nil
}

// VerifyMFA confirms a pending enrollment or, for users with MFA already
// enabled, checks code as a TOTP or backup code. Both paths issue a new
// token pair. Any other outcome is ErrInvalidMFACode.
func (e *Engine) VerifyMFA(ctx context.Context, userID, code string) (*VerifyMFAResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	res, err := e.flow.VerifyMFA(ctx, userID, code)
	if err != nil {
		return nil, err
	}
	return &VerifyMFAResult{Enabled: res.Enabled, Tokens: tokenPairOf(res.Tokens)}, nil
}

// DisableMFA turns MFA off after checking a current TOTP or backup code.
func (e *Engine) DisableMFA(ctx context.Context, userID, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.flow.DisableMFA(ctx, userID, code)
}

// RegenerateBackupCodes replaces all backup codes after checking a current
// TOTP or backup code, and returns the new codes once.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID, code string) ([]string, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.flow.RegenerateBackupCodes(ctx, userID, code)
}

func (e *Engine) renderQR(uri string) (string, error) {
	return totp.Key{URI: uri}.QRCodeDataURL(e.config.TOTP.QRCodeSize)
}
