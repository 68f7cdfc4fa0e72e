package authcore

import (
	"context"
	"time"

	"github.com/spintune/authcore/internal/events"
	"github.com/spintune/authcore/password"
)

// User is the durable user record as seen by the engine. Backup codes and
// refresh tokens live beside it in the store and are reached through
// UserStore methods only.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	// MFASecret is non-empty if and only if MFAEnabled is true.
	MFAEnabled bool
	MFASecret  string
	CreatedAt  time.Time
}

// RefreshTokenRecord is a stored refresh token digest.
type RefreshTokenRecord struct {
	Hash      [32]byte
	ExpiresAt time.Time
}

// UserStore is the durable store collaborator.
//
// Every method is a single atomic operation on the store's side. Backend
// failures must wrap ErrStoreUnavailable so the engine can retry them once.
type UserStore interface {
	// FindByEmail and FindByID return ErrUserNotFound for unknown users.
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, userID string) (User, error)

	// Create persists user together with its initial backup-code hashes and
	// returns it with ID and CreatedAt assigned. It returns ErrDuplicateEmail
	// when the email is taken.
	Create(ctx context.Context, user User, backupCodes [][32]byte) (User, error)

	// AppendRefreshToken records a new refresh token, dropping expired
	// entries and keeping at most keep entries (oldest dropped first).
	AppendRefreshToken(ctx context.Context, userID string, rec RefreshTokenRecord, keep int) error
	// RotateRefreshToken removes presented and appends next in one step. It
	// returns false, and changes nothing, when presented is not on record.
	RotateRefreshToken(ctx context.Context, userID string, presented [32]byte, next RefreshTokenRecord, keep int) (bool, error)
	// RevokeRefreshTokens removes every refresh token of the user and returns
	// how many were removed.
	RevokeRefreshTokens(ctx context.Context, userID string) (int, error)

	// EnableMFA sets the secret and flag; it reports whether anything changed.
	EnableMFA(ctx context.Context, userID, secret string) (bool, error)
	// DisableMFA clears the flag, the secret and all backup codes together.
	DisableMFA(ctx context.Context, userID string) error

	// ConsumeBackupCode removes the code with the given hash and reports
	// whether it was present. Of two concurrent calls for one code, at most
	// one returns true.
	ConsumeBackupCode(ctx context.Context, userID string, hash [32]byte) (bool, error)
	// ReplaceBackupCodes swaps the whole set; no old code survives.
	ReplaceBackupCodes(ctx context.Context, userID string, hashes [][32]byte) error
	CountBackupCodes(ctx context.Context, userID string) (int, error)
}

// EphemeralStore is a string key-value store with per-key expiry. An expired
// key is indistinguishable from a missing one.
type EphemeralStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Get reports ok=false for missing or expired keys.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Delete is idempotent.
	Delete(ctx context.Context, key string) error
}

// PasswordHasher is the credential verifier collaborator.
type PasswordHasher = password.Hasher

// Event is a domain notification handed to the EventPublisher.
type Event = events.Event

// EventPublisher receives domain events. Publishing is best effort: errors
// are logged and never fail the operation that produced the event.
type EventPublisher = events.Publisher

// TokenPair is a signed access/refresh pair.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// LoginState is the state a login attempt ended in.
type LoginState int

const (
	StateAwaitingCredentials LoginState = iota
	StateCredentialsChecked
	StateMFAChallenge
	StateAuthenticated
	StateRejected
)

func (s LoginState) String() string {
	switch s {
	case StateAwaitingCredentials:
		return "awaiting_credentials"
	case StateCredentialsChecked:
		return "credentials_checked"
	case StateMFAChallenge:
		return "mfa_challenge"
	case StateAuthenticated:
		return "authenticated"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// RegisterRequest carries the register input. Names are optional.
type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// RegisterResult is returned by a successful Register. BackupCodes holds the
// initial recovery codes in plaintext; they are not retrievable later.
type RegisterResult struct {
	User        Profile
	Tokens      TokenPair
	BackupCodes []string
}

// LoginRequest carries the login input. MFACode is optional.
type LoginRequest struct {
	Email    string
	Password string
	MFACode  string
}

// LoginResult is either an MFA challenge (State == StateMFAChallenge, Tokens
// zero) or an authenticated session (State == StateAuthenticated).
type LoginResult struct {
	State  LoginState
	UserID string
	Tokens TokenPair
}

// MFARequired reports whether the caller must follow up with VerifyMFA.
func (r LoginResult) MFARequired() bool { return r.State == StateMFAChallenge }

// MFASetup is the pending enrollment returned by SetupMFA.
type MFASetup struct {
	Secret          string
	ProvisioningURI string
	QRCodeDataURL   string
	ExpiresAt       time.Time
}

// VerifyMFAResult is returned by VerifyMFA. Enabled is true when the call
// confirmed a pending enrollment.
type VerifyMFAResult struct {
	Enabled bool
	Tokens  TokenPair
}

// Profile is the non-secret view of a user.
type Profile struct {
	ID                   string
	Email                string
	FirstName            string
	LastName             string
	MFAEnabled           bool
	BackupCodesRemaining int
	CreatedAt            time.Time
}

// AccessClaims is the verified content of an access token.
type AccessClaims struct {
	UserID    string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
