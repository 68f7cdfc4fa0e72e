package flows

import (
	"context"
	"time"
)

// UserRecord is the flow-local user model.
type UserRecord struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	MFAEnabled   bool
	MFASecret    string
	CreatedAt    time.Time
}

// Tokens is the flow-local token pair.
type Tokens struct {
	AccessToken      string
	RefreshToken     string
	AccessID         string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Errors carries host-level sentinel errors returned by flows.
type Errors struct {
	EngineNotReady      error
	DuplicateEmail      error
	InvalidRegistration error
	InvalidCredentials  error
	InvalidMFACode      error
	InvalidToken        error
	UserNotFound        error
	LoginRateLimited    error
	MFARateLimited      error
}

// Metrics carries metric IDs incremented by flows.
type Metrics struct {
	RegisterSuccess        int
	LoginSuccess           int
	LoginFailure           int
	LoginMFAChallenge      int
	LoginRateLimited       int
	RefreshSuccess         int
	RefreshFailure         int
	RefreshReuseDetected   int
	MFASetupStarted        int
	MFAEnabled             int
	MFADisabled            int
	MFAFailure             int
	MFARateLimited         int
	BackupCodeUsed         int
	BackupCodesRegenerated int
	Logout                 int
}

// Events carries the event names emitted by flows.
type Events struct {
	UserCreated            string
	MFAEnabled             string
	MFADisabled            string
	Logout                 string
	BackupCodesRegenerated string
}

// Base is embedded in every flow dependency set.
type Base struct {
	Now       func() time.Time
	MetricInc func(int)
	Emit      func(ctx context.Context, name, userID string, payload map[string]string)
	Warn      func(msg, userID string, err error)

	Errors  Errors
	Metrics Metrics
	Events  Events
}

func (b *Base) normalize() {
	if b.Now == nil {
		b.Now = time.Now
	}
	if b.MetricInc == nil {
		b.MetricInc = func(int) {}
	}
	if b.Emit == nil {
		b.Emit = func(context.Context, string, string, map[string]string) {}
	}
	if b.Warn == nil {
		b.Warn = func(string, string, error) {}
	}
}

// UserLookup resolves users. Both funcs return Errors.UserNotFound for
// unknown users.
type UserLookup struct {
	FindByEmail func(ctx context.Context, email string) (UserRecord, error)
	FindByID    func(ctx context.Context, userID string) (UserRecord, error)
}

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Register    RegisterDeps
	Login       LoginDeps
	Refresh     RefreshDeps
	Logout      LogoutDeps
	MFA         MFADeps
	BackupCodes BackupCodeDeps
	Validate    ValidateDeps
	Profile     ProfileDeps
}
