package authcore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spintune/authcore/internal/rate"
	"github.com/spintune/authcore/internal/stores"
)

// flakyUserStore fails the first failures calls of FindByID with err.
type flakyUserStore struct {
	UserStore
	failures int
	calls    int
	err      error
}

func (s *flakyUserStore) FindByID(_ context.Context, userID string) (User, error) {
	s.calls++
	if s.calls <= s.failures {
		return User{}, s.err
	}
	return User{ID: userID}, nil
}

func TestRetryOnceRecoversTransientFailure(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	next := &flakyUserStore{failures: 1, err: fmt.Errorf("%w: timeout", ErrStoreUnavailable)}
	s := retryingUserStore{next: next, metrics: m}

	u, err := s.FindByID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if u.ID != "u1" || next.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", next.calls)
	}
	if m.Value(MetricStoreRetry) != 1 {
		t.Fatalf("expected one retry recorded, got %d", m.Value(MetricStoreRetry))
	}
}

func TestRetryOnceGivesUpAfterSecondFailure(t *testing.T) {
	next := &flakyUserStore{failures: 5, err: stores.ErrBackend}
	s := retryingUserStore{next: next, metrics: NewMetrics(MetricsConfig{Enabled: true})}

	_, err := s.FindByID(context.Background(), "u1")
	if !errors.Is(err, ErrStoreUnavailable) || !errors.Is(err, stores.ErrBackend) {
		t.Fatalf("expected wrapped ErrStoreUnavailable, got %v", err)
	}
	if next.calls != 2 {
		t.Fatalf("expected exactly 2 calls, got %d", next.calls)
	}
}

// committingStore applies one-time operations and then reports a fault, as a
// backend does when the reply to a committed transaction is lost.
type committingStore struct {
	UserStore
	rotateCalls  int
	consumeCalls int
}

func (s *committingStore) RotateRefreshToken(context.Context, string, [32]byte, RefreshTokenRecord, int) (bool, error) {
	s.rotateCalls++
	if s.rotateCalls == 1 {
		return false, fmt.Errorf("%w: connection reset after commit", ErrStoreUnavailable)
	}
	return false, nil
}

func (s *committingStore) ConsumeBackupCode(context.Context, string, [32]byte) (bool, error) {
	s.consumeCalls++
	if s.consumeCalls == 1 {
		return false, fmt.Errorf("%w: connection reset after commit", ErrStoreUnavailable)
	}
	return false, nil
}

func TestOneTimeOperationsAreNotRetried(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	next := &committingStore{}
	s := retryingUserStore{next: next, metrics: m}
	ctx := context.Background()

	if _, err := s.RotateRefreshToken(ctx, "u1", [32]byte{1}, RefreshTokenRecord{}, 5); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("rotate: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := s.ConsumeBackupCode(ctx, "u1", [32]byte{2}); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("consume: expected ErrStoreUnavailable, got %v", err)
	}
	if next.rotateCalls != 1 || next.consumeCalls != 1 {
		t.Fatalf("expected single attempts, rotate=%d consume=%d", next.rotateCalls, next.consumeCalls)
	}
	if m.Value(MetricStoreRetry) != 0 {
		t.Fatalf("expected no retry recorded, got %d", m.Value(MetricStoreRetry))
	}
}

func TestRetryOnceSkipsExpectedOutcomes(t *testing.T) {
	next := &flakyUserStore{failures: 5, err: ErrUserNotFound}
	s := retryingUserStore{next: next, metrics: NewMetrics(MetricsConfig{Enabled: true})}

	if _, err := s.FindByID(context.Background(), "u1"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if next.calls != 1 {
		t.Fatalf("expected no retry, got %d calls", next.calls)
	}
}

func TestRetryOnceSkipsDeadContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	next := &flakyUserStore{failures: 5, err: ErrStoreUnavailable}
	s := retryingUserStore{next: next, metrics: nil}

	if _, err := s.FindByID(ctx, "u1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if next.calls != 1 {
		t.Fatalf("expected no retry on a cancelled context, got %d calls", next.calls)
	}
}

func TestStoreErrorMapsBackendSentinels(t *testing.T) {
	for _, err := range []error{stores.ErrBackend, rate.ErrCounterUnavailable, context.DeadlineExceeded} {
		if got := storeError(err); !errors.Is(got, ErrStoreUnavailable) {
			t.Fatalf("%v: expected ErrStoreUnavailable, got %v", err, got)
		}
	}
	if got := storeError(rate.ErrRateLimited); errors.Is(got, ErrStoreUnavailable) {
		t.Fatal("limit outcome must not be mapped to a fault")
	}
	if storeError(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestRetryingEphemeral(t *testing.T) {
	mem := stores.NewMemoryEphemeral()
	e := retryingEphemeral{next: mem, metrics: NewMetrics(MetricsConfig{Enabled: true})}
	ctx := context.Background()

	if err := e.Put(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, ok, err := e.Get(ctx, "k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("get: %q %v %v", v, ok, err)
	}
	if err := e.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := e.Get(ctx, "k"); ok {
		t.Fatal("expected key to be gone")
	}
}
