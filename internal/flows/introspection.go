package flows

import "context"

// ProfileRecord is a user together with its remaining backup-code count.
type ProfileRecord struct {
	User                 UserRecord
	BackupCodesRemaining int
}

// ProfileDeps captures profile lookup dependencies.
type ProfileDeps struct {
	Errors Errors
	Users  UserLookup

	CountBackupCodes func(ctx context.Context, userID string) (int, error)
}

func RunProfile(ctx context.Context, userID string, deps ProfileDeps) (*ProfileRecord, error) {
	if deps.Users.FindByID == nil || deps.CountBackupCodes == nil {
		return nil, deps.Errors.EngineNotReady
	}
	user, err := findUser(ctx, userID, deps.Users, deps.Errors)
	if err != nil {
		return nil, err
	}
	n, err := deps.CountBackupCodes(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &ProfileRecord{User: user, BackupCodesRemaining: n}, nil
}
