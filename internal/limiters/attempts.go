package limiters

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spintune/authcore/internal/rate"
)

const (
	defaultMaxAttempts = 5
	defaultWindow      = 15 * time.Minute
)

// ErrLimited is returned by Check and RecordFailure once the budget is spent.
var ErrLimited = rate.ErrRateLimited

// Config holds the failure budget of one limiter.
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// Attempts counts failures per identifier within a fixed window.
type Attempts struct {
	counter     rate.Counter
	namespace   string
	maxAttempts int64
	window      time.Duration
}

// NewAttempts creates a limiter over counter. Zero-value fields in cfg fall
// back to defaults (5 failures / 15m).
func NewAttempts(counter rate.Counter, namespace string, cfg Config) *Attempts {
	max := cfg.MaxAttempts
	if max <= 0 {
		max = defaultMaxAttempts
	}
	window := cfg.Window
	if window <= 0 {
		window = defaultWindow
	}
	return &Attempts{counter: counter, namespace: namespace, maxAttempts: int64(max), window: window}
}

// NewLogin limits failed logins per email address.
func NewLogin(counter rate.Counter, cfg Config) *Attempts {
	return NewAttempts(counter, "al", cfg)
}

// NewMFA limits failed second-factor checks per user id.
func NewMFA(counter rate.Counter, cfg Config) *Attempts {
	return NewAttempts(counter, "am", cfg)
}

func (a *Attempts) key(id string) string {
	return a.namespace + ":" + strings.ToLower(strings.TrimSpace(id))
}

// Check returns ErrLimited when id has no attempts left.
func (a *Attempts) Check(ctx context.Context, id string) error {
	if a == nil {
		return nil
	}
	count, err := a.counter.Count(ctx, a.key(id))
	if err != nil {
		return err
	}
	if count >= a.maxAttempts {
		return ErrLimited
	}
	return nil
}

// RecordFailure counts one failure. It returns ErrLimited when this failure
// used up the last attempt.
func (a *Attempts) RecordFailure(ctx context.Context, id string) error {
	if a == nil {
		return nil
	}
	count, err := a.counter.Incr(ctx, a.key(id), a.window)
	if err != nil {
		return err
	}
	if count >= a.maxAttempts {
		return ErrLimited
	}
	return nil
}

// Reset forgets the failures of id. Called after a success.
func (a *Attempts) Reset(ctx context.Context, id string) error {
	if a == nil {
		return nil
	}
	return a.counter.Reset(ctx, a.key(id))
}

// IsLimited reports whether err is the budget-exhausted outcome rather than a
// backend failure.
func IsLimited(err error) bool {
	return errors.Is(err, ErrLimited)
}
