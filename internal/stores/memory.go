package stores

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const janitorInterval = time.Minute

// MemoryEphemeral is the single-process backend. Expired entries are hidden
// on read and swept by the go-cache janitor.
type MemoryEphemeral struct {
	c *gocache.Cache
}

func NewMemoryEphemeral() *MemoryEphemeral {
	return &MemoryEphemeral{c: gocache.New(gocache.NoExpiration, janitorInterval)}
}

func (m *MemoryEphemeral) Put(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ephemeral: ttl must be positive")
	}
	m.c.Set(key, value, ttl)
	return nil
}

func (m *MemoryEphemeral) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", false, nil
	}
	s, _ := v.(string)
	return s, true, nil
}

func (m *MemoryEphemeral) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

