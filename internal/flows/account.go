package flows

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"
)

const minNameLength = 2

// RegisterRequest is the flow-local register input.
type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// RegisterResult carries the created user, its first session and the
// plaintext backup codes.
type RegisterResult struct {
	User        UserRecord
	Tokens      Tokens
	BackupCodes []string
}

// RegisterDeps captures register flow dependencies.
type RegisterDeps struct {
	Base
	Users   UserLookup
	Session SessionIssuer

	MinPasswordLength int

	NewUserID           func() string
	HashPassword        func(string) (string, error)
	GenerateBackupCodes func() ([]string, error)
	// Create persists user with the given plaintext codes; the host hashes
	// them against user.ID.
	Create func(ctx context.Context, user UserRecord, backupCodes []string) (UserRecord, error)
}

// RunRegister validates the request, creates the user with its initial
// backup codes and opens its first session.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) (*RegisterResult, error) {
	deps.normalize()
	if deps.Users.FindByEmail == nil ||
		deps.NewUserID == nil ||
		deps.HashPassword == nil ||
		deps.GenerateBackupCodes == nil ||
		deps.Create == nil ||
		!deps.Session.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if err := validateRegistration(req, deps.MinPasswordLength); err != nil {
		return nil, errors.Join(deps.Errors.InvalidRegistration, err)
	}

	if _, err := deps.Users.FindByEmail(ctx, req.Email); err == nil {
		return nil, deps.Errors.DuplicateEmail
	} else if !errors.Is(err, deps.Errors.UserNotFound) {
		return nil, err
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return nil, errors.Join(deps.Errors.InvalidRegistration, err)
	}
	codes, err := deps.GenerateBackupCodes()
	if err != nil {
		return nil, err
	}

	user, err := deps.Create(ctx, UserRecord{
		ID:           deps.NewUserID(),
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		CreatedAt:    deps.Now().UTC(),
	}, codes)
	if err != nil {
		return nil, err
	}

	deps.Emit(ctx, deps.Events.UserCreated, user.ID, map[string]string{"email": user.Email})

	tokens, err := issueSession(ctx, user.ID, deps.Session, deps.Warn)
	if err != nil {
		return nil, err
	}
	deps.MetricInc(deps.Metrics.RegisterSuccess)

	return &RegisterResult{User: user, Tokens: tokens, BackupCodes: codes}, nil
}

func validateRegistration(req RegisterRequest, minPassword int) error {
	addr, err := mail.ParseAddress(req.Email)
	if err != nil || addr.Address != req.Email {
		return errors.New("email is not a valid address")
	}
	if utf8.RuneCountInString(req.Password) < minPassword {
		return errors.New("password is too short")
	}
	if req.FirstName != "" && utf8.RuneCountInString(req.FirstName) < minNameLength {
		return errors.New("first name is too short")
	}
	if req.LastName != "" && utf8.RuneCountInString(req.LastName) < minNameLength {
		return errors.New("last name is too short")
	}
	return nil
}
