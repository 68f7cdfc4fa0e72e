package flows

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

var (
	errNotFound     = errors.New("not found")
	errInvalidCreds = errors.New("invalid credentials")
	errInvalidMFA   = errors.New("invalid mfa")
	errInvalidToken = errors.New("invalid token")
	errMFALimited   = errors.New("mfa limited")
	errNotReady     = errors.New("not ready")
	errLimited      = errors.New("limited")
)

func testErrors() Errors {
	return Errors{
		EngineNotReady:      errNotReady,
		DuplicateEmail:      errors.New("duplicate"),
		InvalidRegistration: errors.New("bad registration"),
		InvalidCredentials:  errInvalidCreds,
		InvalidMFACode:      errInvalidMFA,
		InvalidToken:        errInvalidToken,
		UserNotFound:        errNotFound,
		LoginRateLimited:    errors.New("login limited"),
		MFARateLimited:      errMFALimited,
	}
}

// fakeEnv is an in-memory world the flows run against.
type fakeEnv struct {
	mu       sync.Mutex
	users    map[string]UserRecord
	backup   map[string]map[string]bool
	refresh  map[string]map[string]bool
	failures map[string]int
	events   []string
	seq      int
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{
		users:    map[string]UserRecord{},
		backup:   map[string]map[string]bool{},
		refresh:  map[string]map[string]bool{},
		failures: map[string]int{},
	}
}

func (f *fakeEnv) base() Base {
	return Base{
		Now:    time.Now,
		Errors: testErrors(),
		Events: Events{Logout: "user.logout", MFAEnabled: "user.mfa.enabled", MFADisabled: "user.mfa.disabled"},
		Emit: func(_ context.Context, name, _ string, _ map[string]string) {
			f.mu.Lock()
			f.events = append(f.events, name)
			f.mu.Unlock()
		},
	}
}

func (f *fakeEnv) lookup() UserLookup {
	return UserLookup{
		FindByEmail: func(_ context.Context, email string) (UserRecord, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			for _, u := range f.users {
				if u.Email == email {
					return u, nil
				}
			}
			return UserRecord{}, errNotFound
		},
		FindByID: func(_ context.Context, id string) (UserRecord, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			u, ok := f.users[id]
			if !ok {
				return UserRecord{}, errNotFound
			}
			return u, nil
		},
	}
}

func (f *fakeEnv) session() SessionIssuer {
	return SessionIssuer{
		SignPair: func(userID string) (Tokens, error) {
			f.mu.Lock()
			f.seq++
			n := f.seq
			f.mu.Unlock()
			return Tokens{
				AccessToken:  fmt.Sprintf("access-%s-%d", userID, n),
				RefreshToken: fmt.Sprintf("refresh-%s-%d", userID, n),
				AccessID:     fmt.Sprintf("jti-%d", n),
			}, nil
		},
		StoreRefresh: func(_ context.Context, userID string, t Tokens) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.refresh[userID] == nil {
				f.refresh[userID] = map[string]bool{}
			}
			f.refresh[userID][t.RefreshToken] = true
			return nil
		},
	}
}

func (f *fakeEnv) secondFactor(maxFailures int) SecondFactorDeps {
	return SecondFactorDeps{
		BackupCodeLength: 10,
		VerifyTOTP: func(secret, code string, _ time.Time) bool {
			return code == "123456" && secret != ""
		},
		ConsumeBackupCode: func(_ context.Context, userID, canonical string) (bool, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.backup[userID][canonical] {
				delete(f.backup[userID], canonical)
				return true, nil
			}
			return false, nil
		},
		CheckLimit: func(_ context.Context, userID string) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.failures[userID] >= maxFailures {
				return errLimited
			}
			return nil
		},
		RecordFailure: func(_ context.Context, userID string) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.failures[userID]++
			if f.failures[userID] >= maxFailures {
				return errLimited
			}
			return nil
		},
		ResetLimit: func(_ context.Context, userID string) error {
			f.mu.Lock()
			delete(f.failures, userID)
			f.mu.Unlock()
			return nil
		},
		IsRateLimited: func(err error) bool { return errors.Is(err, errLimited) },
	}
}

func (f *fakeEnv) loginDeps() LoginDeps {
	return LoginDeps{
		Base:         f.base(),
		Users:        f.lookup(),
		Session:      f.session(),
		SecondFactor: f.secondFactor(5),
		VerifyPassword: func(pw, hash string) (bool, error) {
			return "hash:"+pw == hash, nil
		},
	}
}

func (f *fakeEnv) addUser(u UserRecord, codes ...string) {
	f.users[u.ID] = u
	f.backup[u.ID] = map[string]bool{}
	for _, c := range codes {
		f.backup[u.ID][c] = true
	}
}

func TestRunLoginChallengeWithoutCode(t *testing.T) {
	env := newFakeEnv()
	env.addUser(UserRecord{ID: "u1", Email: "a@example.com", PasswordHash: "hash:pw", MFAEnabled: true, MFASecret: "S"})

	res, err := RunLogin(context.Background(), LoginRequest{Email: "a@example.com", Password: "pw"}, env.loginDeps())
	if err != nil {
		t.Fatalf("RunLogin: %v", err)
	}
	if !res.MFARequired || res.UserID != "u1" || res.Tokens.AccessToken != "" {
		t.Fatalf("expected bare challenge, got %+v", res)
	}
	if len(env.refresh["u1"]) != 0 {
		t.Fatal("challenge must not issue tokens")
	}
}

func TestRunLoginUnknownEmailRunsDummyVerify(t *testing.T) {
	env := newFakeEnv()
	deps := env.loginDeps()
	called := false
	deps.VerifyDummy = func(string) { called = true }

	_, err := RunLogin(context.Background(), LoginRequest{Email: "nobody@example.com", Password: "pw"}, deps)
	if !errors.Is(err, errInvalidCreds) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if !called {
		t.Fatal("expected dummy verification for unknown email")
	}
}

func TestRunLoginBackupCodeIsTriedFirstAndOnlyOnce(t *testing.T) {
	env := newFakeEnv()
	env.addUser(UserRecord{ID: "u1", Email: "a@example.com", PasswordHash: "hash:pw", MFAEnabled: true, MFASecret: "S"}, "ABCDEFGH23")
	req := LoginRequest{Email: "a@example.com", Password: "pw", MFACode: "abcde-fgh23"}

	res, err := RunLogin(context.Background(), req, env.loginDeps())
	if err != nil || res.Tokens.AccessToken == "" {
		t.Fatalf("expected backup code to authenticate, res=%+v err=%v", res, err)
	}
	if _, err := RunLogin(context.Background(), req, env.loginDeps()); !errors.Is(err, errInvalidMFA) {
		t.Fatalf("expected reused backup code to fail, got %v", err)
	}
	if res, err := RunLogin(context.Background(), LoginRequest{Email: "a@example.com", Password: "pw", MFACode: "123456"}, env.loginDeps()); err != nil || res.MFARequired {
		t.Fatalf("expected TOTP to authenticate, res=%+v err=%v", res, err)
	}
}

func TestRunLoginMFAFailuresAreLimited(t *testing.T) {
	env := newFakeEnv()
	env.addUser(UserRecord{ID: "u1", Email: "a@example.com", PasswordHash: "hash:pw", MFAEnabled: true, MFASecret: "S"})
	deps := env.loginDeps()
	deps.SecondFactor = env.secondFactor(2)
	req := LoginRequest{Email: "a@example.com", Password: "pw", MFACode: "000000"}

	if _, err := RunLogin(context.Background(), req, deps); !errors.Is(err, errInvalidMFA) {
		t.Fatalf("expected invalid code, got %v", err)
	}
	if _, err := RunLogin(context.Background(), req, deps); !errors.Is(err, errMFALimited) {
		t.Fatalf("expected limit on second failure, got %v", err)
	}
	req.MFACode = "123456"
	if _, err := RunLogin(context.Background(), req, deps); !errors.Is(err, errMFALimited) {
		t.Fatalf("expected limit to hold even for a valid code, got %v", err)
	}
}

func TestRunRefreshReuseRevokesAll(t *testing.T) {
	env := newFakeEnv()
	env.addUser(UserRecord{ID: "u1", Email: "a@example.com"})
	env.refresh["u1"] = map[string]bool{"old": true, "other": true}

	deps := RefreshDeps{
		Base:          env.base(),
		Users:         env.lookup(),
		Session:       env.session(),
		RevokeOnReuse: true,
		ParseRefresh: func(token string) (string, error) {
			if token == "garbage" {
				return "", errors.New("malformed")
			}
			return "u1", nil
		},
		Rotate: func(_ context.Context, userID, presented string, next Tokens) (bool, error) {
			env.mu.Lock()
			defer env.mu.Unlock()
			if !env.refresh[userID][presented] {
				return false, nil
			}
			delete(env.refresh[userID], presented)
			env.refresh[userID][next.RefreshToken] = true
			return true, nil
		},
		RevokeAll: func(_ context.Context, userID string) (int, error) {
			env.mu.Lock()
			defer env.mu.Unlock()
			n := len(env.refresh[userID])
			delete(env.refresh, userID)
			return n, nil
		},
	}

	first := RunRefresh(context.Background(), "old", deps)
	if first.Err != nil || first.Tokens.RefreshToken == "" {
		t.Fatalf("expected rotation, got %+v", first)
	}

	reuse := RunRefresh(context.Background(), "old", deps)
	if reuse.Failure != RefreshFailureReuse || !errors.Is(reuse.Err, errInvalidToken) {
		t.Fatalf("expected reuse failure, got %+v", reuse)
	}
	if reuse.Revoked != 2 || len(env.refresh["u1"]) != 0 {
		t.Fatalf("expected every token revoked, revoked=%d left=%d", reuse.Revoked, len(env.refresh["u1"]))
	}

	if r := RunRefresh(context.Background(), "garbage", deps); r.Failure != RefreshFailureDecode || !errors.Is(r.Err, errInvalidToken) {
		t.Fatalf("expected decode failure, got %+v", r)
	}
}

func TestRunVerifyMFAWithoutEnrollmentFallsThrough(t *testing.T) {
	env := newFakeEnv()
	env.addUser(UserRecord{ID: "u1", Email: "a@example.com"}, "ABCDEFGH23")
	staged := map[string]string{}

	deps := MFADeps{
		Base:         env.base(),
		Users:        env.lookup(),
		Session:      env.session(),
		SecondFactor: env.secondFactor(5),
		Staging: Staging{
			TTL:     5 * time.Minute,
			Stage:   func(_ context.Context, id, s string) error { staged[id] = s; return nil },
			Pending: func(_ context.Context, id string) (string, bool, error) { s, ok := staged[id]; return s, ok, nil },
			Clear:   func(_ context.Context, id string) error { delete(staged, id); return nil },
		},
		GenerateSecret: func(string) (string, string, error) { return "S", "otpauth://totp/x", nil },
		EnableMFA: func(_ context.Context, id, secret string) (bool, error) {
			u := env.users[id]
			changed := !u.MFAEnabled || u.MFASecret != secret
			u.MFAEnabled, u.MFASecret = true, secret
			env.users[id] = u
			return changed, nil
		},
		DisableMFA: func(context.Context, string) error { return nil },
	}

	// MFA is not enabled, so an unconsumed backup code must not open a session.
	if _, err := RunVerifyMFA(context.Background(), "u1", "ABCDEFGH23", deps); !errors.Is(err, errInvalidMFA) {
		t.Fatalf("expected invalid code without enrollment, got %v", err)
	}
	if !env.backup["u1"]["ABCDEFGH23"] {
		t.Fatal("backup code must not be consumed while MFA is disabled")
	}

	setup, err := RunSetupMFA(context.Background(), "u1", deps)
	if err != nil || setup.Secret != "S" {
		t.Fatalf("RunSetupMFA: %+v %v", setup, err)
	}
	res, err := RunVerifyMFA(context.Background(), "u1", "123456", deps)
	if err != nil || !res.Enabled {
		t.Fatalf("expected enrollment, got %+v %v", res, err)
	}
	if _, ok := staged["u1"]; ok {
		t.Fatal("expected staged secret to be cleared")
	}
	if len(env.events) != 1 || env.events[0] != "user.mfa.enabled" {
		t.Fatalf("expected one enable event, got %v", env.events)
	}

	if _, err := RunSetupMFA(context.Background(), "missing", deps); !errors.Is(err, errNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestRunLogoutUnknownUser(t *testing.T) {
	env := newFakeEnv()
	deps := LogoutDeps{
		Base:      env.base(),
		Users:     env.lookup(),
		RevokeAll: func(context.Context, string) (int, error) { return 0, nil },
		Untrack:   func(context.Context, string) error { return nil },
	}
	if err := RunLogout(context.Background(), "ghost", deps); !errors.Is(err, errNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}

	env.addUser(UserRecord{ID: "u1"})
	if err := RunLogout(context.Background(), "u1", deps); err != nil {
		t.Fatalf("logout without sessions must succeed: %v", err)
	}
	if len(env.events) != 1 || env.events[0] != "user.logout" {
		t.Fatalf("expected logout event, got %v", env.events)
	}
}
