package authcore

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spintune/authcore/password"
)

// Config is the full engine configuration.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	JWT         JWTConfig        `yaml:"jwt"`
	Refresh     RefreshConfig    `yaml:"refresh"`
	TOTP        TOTPConfig       `yaml:"totp"`
	BackupCodes BackupCodeConfig `yaml:"backup_codes"`
	Session     SessionConfig    `yaml:"session"`
	Password    PasswordConfig   `yaml:"password"`
	Limits      LimitsConfig     `yaml:"limits"`
	Events      EventsConfig     `yaml:"events"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Redis       RedisConfig      `yaml:"redis"`
	Postgres    PostgresConfig   `yaml:"postgres"`
	Log         LogConfig        `yaml:"log"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures access and refresh token signing. Access and refresh
// tokens always use distinct keys. Key material is never read from YAML
// directly; LoadConfig fills it from the *KeyFile paths or the environment.
type JWTConfig struct {
	AccessTTL     time.Duration `yaml:"access_ttl"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl"`
	SigningMethod string        `yaml:"signing_method"` // "hs256" (default) or "ed25519"
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	Leeway        time.Duration `yaml:"leeway"`

	// HS256: the shared secrets. Ed25519: the private keys (raw or PEM).
	AccessKey  []byte `yaml:"-"`
	RefreshKey []byte `yaml:"-"`
	// Ed25519 only.
	AccessPublicKey  []byte `yaml:"-"`
	RefreshPublicKey []byte `yaml:"-"`

	AccessKeyFile        string `yaml:"access_key_file"`
	RefreshKeyFile       string `yaml:"refresh_key_file"`
	AccessPublicKeyFile  string `yaml:"access_public_key_file"`
	RefreshPublicKeyFile string `yaml:"refresh_public_key_file"`
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls refresh token bookkeeping.
type RefreshConfig struct {
	// MaxPerUser bounds stored refresh tokens per user; the oldest is dropped.
	MaxPerUser int `yaml:"max_per_user"`
	// RevokeOnReuse revokes every refresh token of a user that presents a
	// valid but already rotated token.
	RevokeOnReuse bool `yaml:"revoke_on_reuse"`
}

/*
====================================
TOTP CONFIG
====================================
*/

type TOTPConfig struct {
	Issuer     string        `yaml:"issuer"`
	Digits     int           `yaml:"digits"`
	Period     time.Duration `yaml:"period"`
	Skew       uint          `yaml:"skew"`
	Algorithm  string        `yaml:"algorithm"`
	SecretSize uint          `yaml:"secret_size"`
	QRCodeSize int           `yaml:"qr_code_size"` // 0 disables the QR data URL
}

/*
====================================
BACKUP CODE CONFIG
====================================
*/

type BackupCodeConfig struct {
	Count  int `yaml:"count"`
	Length int `yaml:"length"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the ephemeral state kept per user.
type SessionConfig struct {
	// TTL of the session marker. It must not outlive an access token.
	TTL time.Duration `yaml:"ttl"`
	// SetupTTL of a staged, unconfirmed TOTP secret.
	SetupTTL  time.Duration `yaml:"setup_ttl"`
	KeyPrefix string        `yaml:"key_prefix"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

type PasswordConfig struct {
	Algorithm  string                `yaml:"algorithm"` // "bcrypt" or "argon2id" (empty)
	MinLength  int                   `yaml:"min_length"`
	BcryptCost int                   `yaml:"bcrypt_cost"`
	Argon2     password.Argon2Params `yaml:"argon2"`
}

/*
====================================
LIMITS CONFIG
====================================
*/

// AttemptLimit is a failure budget within a fixed window.
type AttemptLimit struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"max_attempts"`
	Window      time.Duration `yaml:"window"`
}

type LimitsConfig struct {
	Login AttemptLimit `yaml:"login"`
	MFA   AttemptLimit `yaml:"mfa"`
}

/*
====================================
EVENTS / METRICS CONFIG
====================================
*/

type EventsConfig struct {
	BufferSize     int           `yaml:"buffer_size"`
	DropIfFull     bool          `yaml:"drop_if_full"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
	RedisChannel   string        `yaml:"redis_channel"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

/*
====================================
BACKENDS
====================================
*/

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the production defaults. JWT keys are left empty and
// must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "authcore",
		},
		Refresh: RefreshConfig{
			MaxPerUser:    10,
			RevokeOnReuse: true,
		},
		TOTP: TOTPConfig{
			Issuer:     "authcore",
			Digits:     6,
			Period:     30 * time.Second,
			Skew:       1,
			Algorithm:  "SHA1",
			SecretSize: 20,
			QRCodeSize: 200,
		},
		BackupCodes: BackupCodeConfig{
			Count:  10,
			Length: 10,
		},
		Session: SessionConfig{
			TTL:      900 * time.Second,
			SetupTTL: 300 * time.Second,
		},
		Password: PasswordConfig{
			Algorithm:  "bcrypt",
			MinLength:  8,
			BcryptCost: password.DefaultBcryptCost,
			Argon2:     password.DefaultArgon2Params(),
		},
		Limits: LimitsConfig{
			Login: AttemptLimit{Enabled: true, MaxAttempts: 10, Window: 15 * time.Minute},
			MFA:   AttemptLimit{Enabled: true, MaxAttempts: 5, Window: 5 * time.Minute},
		},
		Events: EventsConfig{
			BufferSize:     256,
			PublishTimeout: 2 * time.Second,
			RedisChannel:   "authcore.events",
		},
		Metrics: MetricsConfig{Enabled: true},
		Postgres: PostgresConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Validate checks c and returns an error wrapping ErrInvalidConfig for the
// first problem found.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be longer than AccessTTL")
	}
	switch strings.ToLower(c.JWT.SigningMethod) {
	case "hs256":
		if len(c.JWT.AccessKey) < 32 || len(c.JWT.RefreshKey) < 32 {
			return errors.New("hs256 keys must be at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.AccessKey) == 0 || len(c.JWT.RefreshKey) == 0 {
			return errors.New("ed25519 requires private keys")
		}
		if len(c.JWT.AccessPublicKey) == 0 || len(c.JWT.RefreshPublicKey) == 0 {
			return errors.New("ed25519 requires public keys")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if bytes.Equal(c.JWT.AccessKey, c.JWT.RefreshKey) {
		return errors.New("access and refresh keys must differ")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	if c.Refresh.MaxPerUser <= 0 {
		return errors.New("Refresh MaxPerUser must be > 0")
	}

	if c.TOTP.Issuer == "" {
		return errors.New("TOTP Issuer is required")
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 8 {
		return errors.New("TOTP Digits must be between 6 and 8")
	}
	if c.TOTP.Period < 15*time.Second {
		return errors.New("TOTP Period must be >= 15 seconds")
	}
	if c.TOTP.Skew > 3 {
		return errors.New("TOTP Skew must be <= 3")
	}
	if c.TOTP.SecretSize < 16 {
		return errors.New("TOTP SecretSize must be >= 16 bytes")
	}
	switch strings.ToUpper(c.TOTP.Algorithm) {
	case "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("TOTP Algorithm must be SHA1, SHA256, or SHA512")
	}
	if c.TOTP.QRCodeSize < 0 {
		return errors.New("TOTP QRCodeSize must be >= 0")
	}

	if c.BackupCodes.Count < 1 || c.BackupCodes.Count > 32 {
		return errors.New("BackupCodes Count must be between 1 and 32")
	}
	if c.BackupCodes.Length < 8 || c.BackupCodes.Length > 16 {
		return errors.New("BackupCodes Length must be between 8 and 16")
	}
	if c.BackupCodes.Length <= c.TOTP.Digits {
		return errors.New("BackupCodes Length must be longer than TOTP Digits")
	}

	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.TTL > c.JWT.AccessTTL {
		return errors.New("Session TTL must not exceed JWT AccessTTL")
	}
	if c.Session.SetupTTL <= 0 {
		return errors.New("Session SetupTTL must be > 0")
	}

	switch strings.ToLower(c.Password.Algorithm) {
	case "bcrypt":
		if c.Password.BcryptCost < 10 || c.Password.BcryptCost > 16 {
			return errors.New("Password BcryptCost must be between 10 and 16")
		}
	case "", "argon2id":
	default:
		return errors.New("Password Algorithm must be bcrypt or argon2id")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}

	for name, l := range map[string]AttemptLimit{"Login": c.Limits.Login, "MFA": c.Limits.MFA} {
		if !l.Enabled {
			continue
		}
		if l.MaxAttempts <= 0 || l.Window <= 0 {
			return fmt.Errorf("Limits %s requires MaxAttempts > 0 and Window > 0", name)
		}
	}

	if c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be > 0")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessKey = cloneBytes(cfg.JWT.AccessKey)
	out.JWT.RefreshKey = cloneBytes(cfg.JWT.RefreshKey)
	out.JWT.AccessPublicKey = cloneBytes(cfg.JWT.AccessPublicKey)
	out.JWT.RefreshPublicKey = cloneBytes(cfg.JWT.RefreshPublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
