package authcore

import (
	"context"

	"github.com/spintune/authcore/internal/flows"
)

// Profile returns the non-secret view of a user, or ErrUserNotFound.
func (e *Engine) Profile(ctx context.Context, userID string) (*Profile, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	res, err := e.flow.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := profileOf(res.User, res.BackupCodesRemaining)
	return &p, nil
}

func profileOf(u flows.UserRecord, backupCodes int) Profile {
	return Profile{
		ID:                   u.ID,
		Email:                u.Email,
		FirstName:            u.FirstName,
		LastName:             u.LastName,
		MFAEnabled:           u.MFAEnabled,
		BackupCodesRemaining: backupCodes,
		CreatedAt:            u.CreatedAt,
	}
}

func recordOf(u User) flows.UserRecord {
	return flows.UserRecord{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		MFAEnabled:   u.MFAEnabled,
		MFASecret:    u.MFASecret,
		CreatedAt:    u.CreatedAt,
	}
}

func userOf(r flows.UserRecord) User {
	return User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		MFAEnabled:   r.MFAEnabled,
		MFASecret:    r.MFASecret,
		CreatedAt:    r.CreatedAt,
	}
}
