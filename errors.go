package authcore

import "errors"

// Expected outcomes. Callers branch on these with errors.Is; none of them
// indicates a fault in the engine.
var (
	// ErrDuplicateEmail is returned by Register when the email is already taken.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidMFACode is returned for a wrong TOTP or backup code, or when no
	// second factor is available to check the code against.
	ErrInvalidMFACode = errors.New("invalid mfa code")
	// ErrInvalidToken is returned for a refresh or access token that is
	// malformed, expired, of the wrong kind or no longer on record.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUserNotFound is returned by profile-style operations for unknown ids.
	// Login paths report ErrInvalidCredentials instead.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidRegistration is returned when register input fails basic checks.
	ErrInvalidRegistration = errors.New("invalid registration request")
	// ErrLoginRateLimited is returned when an email exceeded its login attempts.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrMFARateLimited is returned when a user exceeded its second-factor attempts.
	ErrMFARateLimited = errors.New("mfa rate limited")
)

// Faults.
var (
	// ErrStoreUnavailable marks a durable or ephemeral store that could not be
	// reached or timed out. Adapters wrap backend errors with it.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrEngineNotReady is returned by a nil or closed Engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid config")
)
