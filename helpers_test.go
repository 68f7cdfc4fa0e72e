package authcore_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spintune/authcore"
	"github.com/spintune/authcore/store/memstore"
	"github.com/spintune/authcore/totp"
)

const testPassword = "correct-horse-battery"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []authcore.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev authcore.Event) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Name)
	}
	return out
}

func testConfig() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.JWT.AccessKey = bytes.Repeat([]byte("a"), 32)
	cfg.JWT.RefreshKey = bytes.Repeat([]byte("r"), 32)
	cfg.Password.BcryptCost = 10
	return cfg
}

type testEnv struct {
	engine    *authcore.Engine
	store     *memstore.Store
	clock     *testClock
	publisher *recordingPublisher
}

func newTestEnv(t *testing.T, mutate ...func(*authcore.Config)) *testEnv {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	env := &testEnv{
		store:     memstore.New(),
		clock:     newTestClock(),
		publisher: &recordingPublisher{},
	}
	engine, err := authcore.New().
		WithConfig(cfg).
		WithUserStore(env.store).
		WithEventPublisher(env.publisher).
		WithClock(env.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	env.engine = engine
	t.Cleanup(engine.Close)
	return env
}

func (env *testEnv) register(t *testing.T, email string) *authcore.RegisterResult {
	t.Helper()
	res, err := env.engine.Register(context.Background(), authcore.RegisterRequest{
		Email:     email,
		Password:  testPassword,
		FirstName: "Alice",
		LastName:  "Liddell",
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return res
}

func totpCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	m, err := totp.NewManager(totp.Config{Issuer: "authcore"})
	if err != nil {
		t.Fatalf("totp manager: %v", err)
	}
	code, err := m.CodeAt(secret, at)
	if err != nil {
		t.Fatalf("totp code: %v", err)
	}
	return code
}

// enableMFA enrolls userID and returns the active secret.
func (env *testEnv) enableMFA(t *testing.T, userID string) string {
	t.Helper()
	ctx := context.Background()
	setup, err := env.engine.SetupMFA(ctx, userID)
	if err != nil {
		t.Fatalf("setup mfa: %v", err)
	}
	res, err := env.engine.VerifyMFA(ctx, userID, totpCode(t, setup.Secret, env.clock.Now()))
	if err != nil {
		t.Fatalf("verify mfa: %v", err)
	}
	if !res.Enabled {
		t.Fatal("expected enrollment to be confirmed")
	}
	return setup.Secret
}
