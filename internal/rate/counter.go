package rate

import (
	"context"
	"time"
)

// Counter is a fixed-window hit counter. The window starts at the first Incr
// of a key and the key disappears when it ends.
type Counter interface {
	// Incr adds one hit and returns the count within the current window.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	// Count returns the hits recorded in the current window, zero when none.
	Count(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}
