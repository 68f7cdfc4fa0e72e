package stores

import (
	"context"
	"errors"
	"time"
)

// KV is the ephemeral key-value contract the trackers are built on.
type KV interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

// SessionTracker keeps one advisory "current session" marker per user.
type SessionTracker struct {
	kv     KV
	prefix string
	ttl    time.Duration
}

func NewSessionTracker(kv KV, prefix string, ttl time.Duration) *SessionTracker {
	if prefix == "" {
		prefix = "session"
	}
	return &SessionTracker{kv: kv, prefix: prefix, ttl: ttl}
}

func (t *SessionTracker) key(userID string) string {
	return t.prefix + ":" + userID
}

// Track overwrites the user's marker with sessionID.
func (t *SessionTracker) Track(ctx context.Context, userID, sessionID string) error {
	if userID == "" || sessionID == "" {
		return errors.New("session: empty user or session id")
	}
	return t.kv.Put(ctx, t.key(userID), sessionID, t.ttl)
}

// Untrack removes the marker. Removing a missing marker is not an error.
func (t *SessionTracker) Untrack(ctx context.Context, userID string) error {
	return t.kv.Delete(ctx, t.key(userID))
}

// Current returns the tracked session id, if any.
func (t *SessionTracker) Current(ctx context.Context, userID string) (string, bool, error) {
	return t.kv.Get(ctx, t.key(userID))
}

// SetupStaging holds TOTP secrets awaiting their first confirmation. A new
// Stage for the same user replaces the previous one.
type SetupStaging struct {
	kv     KV
	prefix string
	ttl    time.Duration
}

func NewSetupStaging(kv KV, prefix string, ttl time.Duration) *SetupStaging {
	if prefix == "" {
		prefix = "mfa_setup"
	}
	return &SetupStaging{kv: kv, prefix: prefix, ttl: ttl}
}

func (s *SetupStaging) key(userID string) string {
	return s.prefix + ":" + userID
}

func (s *SetupStaging) TTL() time.Duration { return s.ttl }

func (s *SetupStaging) Stage(ctx context.Context, userID, secret string) error {
	if userID == "" || secret == "" {
		return errors.New("staging: empty user or secret")
	}
	return s.kv.Put(ctx, s.key(userID), secret, s.ttl)
}

// Pending returns the staged secret. An expired entry reports ok=false.
func (s *SetupStaging) Pending(ctx context.Context, userID string) (string, bool, error) {
	return s.kv.Get(ctx, s.key(userID))
}

func (s *SetupStaging) Clear(ctx context.Context, userID string) error {
	return s.kv.Delete(ctx, s.key(userID))
}
