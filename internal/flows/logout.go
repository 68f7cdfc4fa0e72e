package flows

import (
	"context"
	"errors"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Base
	Users UserLookup

	RevokeAll func(ctx context.Context, userID string) (int, error)
	Untrack   func(ctx context.Context, userID string) error
}

// RunLogout revokes every refresh token of the user and drops its session
// marker. Logging out a user without sessions succeeds.
func RunLogout(ctx context.Context, userID string, deps LogoutDeps) error {
	deps.normalize()
	if deps.Users.FindByID == nil || deps.RevokeAll == nil || deps.Untrack == nil {
		return deps.Errors.EngineNotReady
	}
	if userID == "" {
		return deps.Errors.UserNotFound
	}
	if _, err := deps.Users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			return deps.Errors.UserNotFound
		}
		return err
	}

	var revoked int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := deps.RevokeAll(gctx, userID)
		revoked = n
		return err
	})
	g.Go(func() error {
		return deps.Untrack(gctx, userID)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	deps.Emit(ctx, deps.Events.Logout, userID, map[string]string{"revoked": strconv.Itoa(revoked)})
	deps.MetricInc(deps.Metrics.Logout)
	return nil
}
