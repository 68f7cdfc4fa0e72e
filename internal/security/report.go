package security

import "time"

// PasswordReport describes the active password scheme.
type PasswordReport struct {
	Algorithm  string
	MinLength  int
	BcryptCost int
	Argon2Time uint32
	Argon2KiB  uint32
}

// Report is a read-only summary of an engine's security posture.
type Report struct {
	SigningAlgorithm       string
	AsymmetricSigning      bool
	AccessTTL              time.Duration
	RefreshTTL             time.Duration
	SessionTTL             time.Duration
	RefreshRotationEnabled bool
	RevokeOnReuse          bool
	MaxRefreshPerUser      int
	Password               PasswordReport
	TOTPDigits             int
	TOTPSkew               uint
	TOTPAlgorithm          string
	BackupCodeCount        int
	BackupCodeLength       int
	LoginLimitActive       bool
	MFALimitActive         bool
	DistributedState       bool
	Warnings               []string
}

type ReportInput struct {
	SigningAlgorithm  string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	SessionTTL        time.Duration
	RevokeOnReuse     bool
	MaxRefreshPerUser int
	Password          PasswordReport
	TOTPDigits        int
	TOTPSkew          uint
	TOTPAlgorithm     string
	BackupCodeCount   int
	BackupCodeLength  int
	LoginLimitEnabled bool
	LoginMaxAttempts  int
	MFALimitEnabled   bool
	MFAMaxAttempts    int
	RedisBacked       bool
}

// BuildReport derives a Report from input. Warnings list settings that are
// valid but weaker than the defaults.
func BuildReport(input ReportInput) Report {
	r := Report{
		SigningAlgorithm:       input.SigningAlgorithm,
		AsymmetricSigning:      input.SigningAlgorithm == "ed25519",
		AccessTTL:              input.AccessTTL,
		RefreshTTL:             input.RefreshTTL,
		SessionTTL:             input.SessionTTL,
		RefreshRotationEnabled: true,
		RevokeOnReuse:          input.RevokeOnReuse,
		MaxRefreshPerUser:      input.MaxRefreshPerUser,
		Password:               input.Password,
		TOTPDigits:             input.TOTPDigits,
		TOTPSkew:               input.TOTPSkew,
		TOTPAlgorithm:          input.TOTPAlgorithm,
		BackupCodeCount:        input.BackupCodeCount,
		BackupCodeLength:       input.BackupCodeLength,
		LoginLimitActive:       input.LoginLimitEnabled && input.LoginMaxAttempts > 0,
		MFALimitActive:         input.MFALimitEnabled && input.MFAMaxAttempts > 0,
		DistributedState:       input.RedisBacked,
	}

	if !r.RevokeOnReuse {
		r.Warnings = append(r.Warnings, "refresh token reuse does not revoke the user's sessions")
	}
	if !r.LoginLimitActive {
		r.Warnings = append(r.Warnings, "login attempts are not limited")
	}
	if !r.MFALimitActive {
		r.Warnings = append(r.Warnings, "second-factor attempts are not limited")
	}
	if !r.DistributedState {
		r.Warnings = append(r.Warnings, "sessions and limiter counters are process-local")
	}
	if input.TOTPSkew > 1 {
		r.Warnings = append(r.Warnings, "TOTP skew accepts more than one step of drift")
	}
	return r
}
