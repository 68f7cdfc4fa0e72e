package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spintune/authcore/internal/rate"
	"github.com/spintune/authcore/internal/stores"
)

// storeError folds the internal backend sentinels into ErrStoreUnavailable.
func storeError(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	if errors.Is(err, stores.ErrBackend) || errors.Is(err, rate.ErrCounterUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}

// retryOnce runs op and repeats it exactly once, without backoff, when it
// failed with ErrStoreUnavailable and ctx is still live.
func retryOnce[T any](ctx context.Context, m *Metrics, op func() (T, error)) (T, error) {
	v, err := op()
	err = storeError(err)
	if err == nil || !errors.Is(err, ErrStoreUnavailable) || ctx.Err() != nil {
		return v, err
	}
	m.Inc(MetricStoreRetry)
	v, err = op()
	return v, storeError(err)
}

func retryOnceErr(ctx context.Context, m *Metrics, op func() error) error {
	_, err := retryOnce(ctx, m, func() (struct{}, error) { return struct{}{}, op() })
	return err
}

// retryingUserStore decorates a UserStore with the single-retry policy.
type retryingUserStore struct {
	next    UserStore
	metrics *Metrics
}

func (s retryingUserStore) FindByEmail(ctx context.Context, email string) (User, error) {
	return retryOnce(ctx, s.metrics, func() (User, error) { return s.next.FindByEmail(ctx, email) })
}

func (s retryingUserStore) FindByID(ctx context.Context, userID string) (User, error) {
	return retryOnce(ctx, s.metrics, func() (User, error) { return s.next.FindByID(ctx, userID) })
}

func (s retryingUserStore) Create(ctx context.Context, user User, backupCodes [][32]byte) (User, error) {
	return retryOnce(ctx, s.metrics, func() (User, error) { return s.next.Create(ctx, user, backupCodes) })
}

func (s retryingUserStore) AppendRefreshToken(ctx context.Context, userID string, rec RefreshTokenRecord, keep int) error {
	return retryOnceErr(ctx, s.metrics, func() error { return s.next.AppendRefreshToken(ctx, userID, rec, keep) })
}

// RotateRefreshToken is not retried: after a commit whose reply was lost, a
// second attempt finds the presented token gone and reads as reuse.
func (s retryingUserStore) RotateRefreshToken(ctx context.Context, userID string, presented [32]byte, next RefreshTokenRecord, keep int) (bool, error) {
	ok, err := s.next.RotateRefreshToken(ctx, userID, presented, next, keep)
	return ok, storeError(err)
}

func (s retryingUserStore) RevokeRefreshTokens(ctx context.Context, userID string) (int, error) {
	return retryOnce(ctx, s.metrics, func() (int, error) { return s.next.RevokeRefreshTokens(ctx, userID) })
}

func (s retryingUserStore) EnableMFA(ctx context.Context, userID, secret string) (bool, error) {
	return retryOnce(ctx, s.metrics, func() (bool, error) { return s.next.EnableMFA(ctx, userID, secret) })
}

func (s retryingUserStore) DisableMFA(ctx context.Context, userID string) error {
	return retryOnceErr(ctx, s.metrics, func() error { return s.next.DisableMFA(ctx, userID) })
}

// ConsumeBackupCode is single-shot for the same reason as RotateRefreshToken.
func (s retryingUserStore) ConsumeBackupCode(ctx context.Context, userID string, hash [32]byte) (bool, error) {
	ok, err := s.next.ConsumeBackupCode(ctx, userID, hash)
	return ok, storeError(err)
}

func (s retryingUserStore) ReplaceBackupCodes(ctx context.Context, userID string, hashes [][32]byte) error {
	return retryOnceErr(ctx, s.metrics, func() error { return s.next.ReplaceBackupCodes(ctx, userID, hashes) })
}

func (s retryingUserStore) CountBackupCodes(ctx context.Context, userID string) (int, error) {
	return retryOnce(ctx, s.metrics, func() (int, error) { return s.next.CountBackupCodes(ctx, userID) })
}

// retryingEphemeral decorates an EphemeralStore with the single-retry policy.
type retryingEphemeral struct {
	next    EphemeralStore
	metrics *Metrics
}

func (s retryingEphemeral) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return retryOnceErr(ctx, s.metrics, func() error { return s.next.Put(ctx, key, value, ttl) })
}

func (s retryingEphemeral) Get(ctx context.Context, key string) (string, bool, error) {
	type result struct {
		value string
		ok    bool
	}
	r, err := retryOnce(ctx, s.metrics, func() (result, error) {
		v, ok, err := s.next.Get(ctx, key)
		return result{v, ok}, err
	})
	return r.value, r.ok, err
}

func (s retryingEphemeral) Delete(ctx context.Context, key string) error {
	return retryOnceErr(ctx, s.metrics, func() error { return s.next.Delete(ctx, key) })
}
