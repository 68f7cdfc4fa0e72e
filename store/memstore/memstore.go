// Package memstore is an in-process authcore.UserStore. Every method runs
// inside one critical section, which makes each of them atomic.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spintune/authcore"
)

type entry struct {
	user        authcore.User
	backupCodes map[[32]byte]struct{}
	refresh     []authcore.RefreshTokenRecord
}

// Store keeps users in maps guarded by a single mutex. Emails are matched
// exactly as stored.
type Store struct {
	mu      sync.Mutex
	byID    map[string]*entry
	byEmail map[string]string
	now     func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byID:    make(map[string]*entry),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (s *Store) get(userID string) (*entry, error) {
	e, ok := s.byID[userID]
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	return e, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (authcore.User, error) {
	if err := ctx.Err(); err != nil {
		return authcore.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return authcore.User{}, authcore.ErrUserNotFound
	}
	return s.byID[id].user, nil
}

func (s *Store) FindByID(ctx context.Context, userID string) (authcore.User, error) {
	if err := ctx.Err(); err != nil {
		return authcore.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.get(userID)
	if err != nil {
		return authcore.User{}, err
	}
	return e.user, nil
}

// Create keeps a preset user.ID and assigns a UUID otherwise.
func (s *Store) Create(ctx context.Context, user authcore.User, backupCodes [][32]byte) (authcore.User, error) {
	if err := ctx.Err(); err != nil {
		return authcore.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := user.Email
	if _, taken := s.byEmail[key]; taken {
		return authcore.User{}, authcore.ErrDuplicateEmail
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if _, taken := s.byID[user.ID]; taken {
		return authcore.User{}, authcore.ErrDuplicateEmail
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}

	e := &entry{user: user, backupCodes: make(map[[32]byte]struct{}, len(backupCodes))}
	for _, h := range backupCodes {
		e.backupCodes[h] = struct{}{}
	}
	s.byID[user.ID] = e
	s.byEmail[key] = user.ID
	return user, nil
}

// appendBounded drops expired records and keeps the newest keep entries.
func appendBounded(list []authcore.RefreshTokenRecord, rec authcore.RefreshTokenRecord, keep int, now time.Time) []authcore.RefreshTokenRecord {
	out := list[:0]
	for _, r := range list {
		if r.ExpiresAt.After(now) {
			out = append(out, r)
		}
	}
	out = append(out, rec)
	if keep > 0 && len(out) > keep {
		out = append([]authcore.RefreshTokenRecord(nil), out[len(out)-keep:]...)
	}
	return out
}

func (s *Store) AppendRefreshToken(ctx context.Context, userID string, rec authcore.RefreshTokenRecord, keep int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.get(userID)
	if err != nil {
		return err
	}
	e.refresh = appendBounded(e.refresh, rec, keep, s.now())
	return nil
}

func (s *Store) RotateRefreshToken(ctx context.Context, userID string, presented [32]byte, next authcore.RefreshTokenRecord, keep int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.get(userID)
	if err != nil {
		return false, err
	}
	idx := -1
	for i, r := range e.refresh {
		if r.Hash == presented {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}
	remaining := append(e.refresh[:idx:idx], e.refresh[idx+1:]...)
	e.refresh = appendBounded(remaining, next, keep, s.now())
	return true, nil
}

func (s *Store) RevokeRefreshTokens(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.get(userID)
	if err != nil {
		return 0, err
	}
	n := len(e.refresh)
	e.refresh = nil
	return n, nil
}

func (s *Store) EnableMFA(ctx context.Context, userID, secret string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.get(userID)
	if err != nil {
		return false, err
	}
	if e.user.MFAEnabled && e.user.MFASecret == secret {
		return false, nil
	}
	e.user.MFAEnabled = true
	e.user.MFASecret = secret
	return true, nil
}

func (s *Store) DisableMFA(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.get(userID)
	if err != nil {
		return err
	}
	e.user.MFAEnabled = false
	e.user.MFASecret = ""
	e.backupCodes = make(map[[32]byte]struct{})
	return nil
}

func (s *Store) ConsumeBackupCode(ctx context.Context, userID string, hash [32]byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.get(userID)
	if err != nil {
		return false, err
	}
	if _, ok := e.backupCodes[hash]; !ok {
		return false, nil
	}
	delete(e.backupCodes, hash)
	return true, nil
}

func (s *Store) ReplaceBackupCodes(ctx context.Context, userID string, hashes [][32]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.get(userID)
	if err != nil {
		return err
	}
	codes := make(map[[32]byte]struct{}, len(hashes))
	for _, h := range hashes {
		codes[h] = struct{}{}
	}
	e.backupCodes = codes
	return nil
}

func (s *Store) CountBackupCodes(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.get(userID)
	if err != nil {
		return 0, err
	}
	return len(e.backupCodes), nil
}

// RefreshTokenCount reports how many refresh tokens are on record for
// userID. It exists for tests and diagnostics.
func (s *Store) RefreshTokenCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[userID]
	if !ok {
		return 0
	}
	return len(e.refresh)
}

var _ authcore.UserStore = (*Store)(nil)
