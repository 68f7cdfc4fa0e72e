package authcore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spintune/authcore/internal/events"
	"github.com/spintune/authcore/internal/flows"
	"github.com/spintune/authcore/internal/limiters"
	"github.com/spintune/authcore/internal/rate"
	"github.com/spintune/authcore/internal/stores"
	"github.com/spintune/authcore/jwt"
	"github.com/spintune/authcore/password"
	"github.com/spintune/authcore/totp"
)

const (
	sessionKeyPrefix = "session"
	setupKeyPrefix   = "mfa_setup"
)

// Builder assembles an Engine from a Config and its collaborators. A Builder
// is single-use.
type Builder struct {
	config    Config
	users     UserStore
	redis     redis.UniversalClient
	ephemeral EphemeralStore
	hasher    PasswordHasher
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithUserStore sets the durable store. It is required.
func (b *Builder) WithUserStore(s UserStore) *Builder {
	b.users = s
	return b
}

// WithRedis backs the ephemeral store and both attempt limiters with Redis.
// Without it the engine keeps that state in process memory.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithEphemeralStore overrides the session and setup-staging store. The
// attempt limiters still use Redis when WithRedis is set.
func (b *Builder) WithEphemeralStore(s EphemeralStore) *Builder {
	b.ephemeral = s
	return b
}

func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithEventPublisher(p EventPublisher) *Builder {
	b.publisher = p
	return b
}

func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithClock overrides the time source used for TOTP checks and token claims.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := NewMetrics(cfg.Metrics)

	// -------- EPHEMERAL STATE --------
	var ephemeral EphemeralStore
	switch {
	case b.ephemeral != nil:
		ephemeral = b.ephemeral
	case b.redis != nil:
		ephemeral = stores.NewRedisEphemeral(b.redis, cfg.Session.KeyPrefix)
	default:
		ephemeral = stores.NewMemoryEphemeral()
	}
	ephemeral = retryingEphemeral{next: ephemeral, metrics: metrics}

	// -------- TOKENS --------
	issuer, err := newIssuer(cfg.JWT, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	tm, err := totp.NewManager(totp.Config{
		Issuer:     cfg.TOTP.Issuer,
		Digits:     cfg.TOTP.Digits,
		Period:     int(cfg.TOTP.Period / time.Second),
		Skew:       int(cfg.TOTP.Skew),
		Algorithm:  cfg.TOTP.Algorithm,
		SecretSize: int(cfg.TOTP.SecretSize),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	// -------- PASSWORDS --------
	hasher := b.hasher
	if hasher == nil {
		h, err := password.New(cfg.Password.Algorithm, cfg.Password.Argon2, cfg.Password.BcryptCost)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		hasher = h
	}
	dummyHash, err := hasher.Hash("authcore-dummy-password")
	if err != nil {
		return nil, err
	}

	// -------- LIMITERS --------
	var counter rate.Counter
	if b.redis != nil {
		counter = rate.NewRedisCounter(b.redis)
	} else {
		counter = rate.NewMemoryCounter()
	}
	var loginLimiter, mfaLimiter *limiters.Attempts
	if cfg.Limits.Login.Enabled {
		loginLimiter = limiters.NewLogin(counter, limiters.Config{
			MaxAttempts: cfg.Limits.Login.MaxAttempts,
			Window:      cfg.Limits.Login.Window,
		})
	}
	if cfg.Limits.MFA.Enabled {
		mfaLimiter = limiters.NewMFA(counter, limiters.Config{
			MaxAttempts: cfg.Limits.MFA.MaxAttempts,
			Window:      cfg.Limits.MFA.Window,
		})
	}

	publisher := b.publisher
	if publisher == nil {
		publisher = events.NoOpPublisher{}
	}

	engine := &Engine{
		config:       cfg,
		users:        retryingUserStore{next: b.users, metrics: metrics},
		ephemeral:    ephemeral,
		redisBacked:  b.redis != nil,
		sessions:     stores.NewSessionTracker(ephemeral, sessionKeyPrefix, cfg.Session.TTL),
		staging:      stores.NewSetupStaging(ephemeral, setupKeyPrefix, cfg.Session.SetupTTL),
		issuer:       issuer,
		totp:         tm,
		hasher:       hasher,
		dummyHash:    dummyHash,
		loginLimiter: loginLimiter,
		mfaLimiter:   mfaLimiter,
		events: events.NewDispatcher(events.Config{
			BufferSize:     cfg.Events.BufferSize,
			DropIfFull:     cfg.Events.DropIfFull,
			PublishTimeout: cfg.Events.PublishTimeout,
		}, publisher, logger.Named("events")),
		metrics: metrics,
		logger:  logger,
		now:     now,
	}
	engine.flow = flows.New(engine.wireFlows())

	b.built = true
	return engine, nil
}

func newIssuer(cfg JWTConfig, now func() time.Time) (*jwt.Issuer, error) {
	method := jwt.SigningMethod(strings.ToLower(cfg.SigningMethod))
	base := jwt.Config{
		SigningMethod: method,
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
		Leeway:        cfg.Leeway,
		Now:           now,
	}

	access, refresh := base, base
	access.TTL = cfg.AccessTTL
	access.PrivateKey = cloneBytes(cfg.AccessKey)
	refresh.TTL = cfg.RefreshTTL
	refresh.PrivateKey = cloneBytes(cfg.RefreshKey)
	if method == jwt.MethodEd25519 {
		access.PublicKey = cloneBytes(cfg.AccessPublicKey)
		refresh.PublicKey = cloneBytes(cfg.RefreshPublicKey)
	}
	return jwt.NewIssuer(access, refresh)
}
