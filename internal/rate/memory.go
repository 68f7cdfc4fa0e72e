package rate

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCounter is the single-process counter. It is not shared between
// instances, so limits apply per process.
type MemoryCounter struct {
	c *gocache.Cache
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{c: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (m *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	// Add fails when the key exists and IncrementInt64 fails when it expired in
	// between, so a couple of rounds settle any interleaving.
	for i := 0; i < 3; i++ {
		if err := m.c.Add(key, int64(1), window); err == nil {
			return 1, nil
		}
		if n, err := m.c.IncrementInt64(key, 1); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("rate: counter contention on " + key)
}

func (m *MemoryCounter) Count(_ context.Context, key string) (int64, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return 0, nil
	}
	n, _ := v.(int64)
	return n, nil
}

func (m *MemoryCounter) Reset(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}
