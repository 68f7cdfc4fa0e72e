package rate

import "errors"

var (
	// ErrRateLimited is returned once a key has used up its window budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrCounterUnavailable wraps failures of the counter backend.
	ErrCounterUnavailable = errors.New("rate counter unavailable")
)
