package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Login.VerifyPassword != nil && s.deps.Validate.ParseAccess != nil
}

func (s Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	return RunRegister(ctx, req, s.deps.Register)
}

func (s Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	return RunLogin(ctx, req, s.deps.Login)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) RefreshResult {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, userID string) error {
	return RunLogout(ctx, userID, s.deps.Logout)
}

func (s Service) SetupMFA(ctx context.Context, userID string) (*MFASetup, error) {
	return RunSetupMFA(ctx, userID, s.deps.MFA)
}

func (s Service) VerifyMFA(ctx context.Context, userID, code string) (*MFAVerifyResult, error) {
	return RunVerifyMFA(ctx, userID, code, s.deps.MFA)
}

func (s Service) DisableMFA(ctx context.Context, userID, code string) error {
	return RunDisableMFA(ctx, userID, code, s.deps.MFA)
}

func (s Service) RegenerateBackupCodes(ctx context.Context, userID, code string) ([]string, error) {
	return RunRegenerateBackupCodes(ctx, userID, code, s.deps.BackupCodes)
}

func (s Service) ValidateAccess(token string) (AccessInfo, error) {
	return RunValidateAccess(token, s.deps.Validate)
}

func (s Service) ValidateAccessStrict(ctx context.Context, token string) (AccessInfo, error) {
	return RunValidateAccessStrict(ctx, token, s.deps.Validate)
}

func (s Service) Profile(ctx context.Context, userID string) (*ProfileRecord, error) {
	return RunProfile(ctx, userID, s.deps.Profile)
}
