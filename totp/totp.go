package totp

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// DefaultSecretSize is the secret length in bytes (160 bits).
const DefaultSecretSize = 20

// Config describes the time-step parameters shared by enrollment and
// verification.
type Config struct {
	Issuer     string
	Digits     int
	Period     int
	Skew       int
	Algorithm  string
	SecretSize int
}

// Key is a freshly generated secret and its provisioning URI.
type Key struct {
	Secret string
	URI    string
	key    *otp.Key
}

// Manager generates secrets and verifies time-window codes. It holds no
// mutable state.
type Manager struct {
	issuer     string
	secretSize uint
	opts       totp.ValidateOpts
}

// NewManager validates cfg and builds a Manager. Zero values fall back to
// 6 digits, a 30s period and SHA1.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Digits == 0 {
		cfg.Digits = 6
	}
	if cfg.Period == 0 {
		cfg.Period = 30
	}
	if cfg.SecretSize == 0 {
		cfg.SecretSize = DefaultSecretSize
	}
	if cfg.Issuer == "" {
		return nil, errors.New("totp: issuer is required")
	}
	if cfg.Digits < 6 || cfg.Digits > 8 {
		return nil, errors.New("totp: digits must be between 6 and 8")
	}
	if cfg.Period < 1 {
		return nil, errors.New("totp: period must be positive")
	}
	if cfg.Skew < 0 {
		return nil, errors.New("totp: skew must be >= 0")
	}
	if cfg.SecretSize < DefaultSecretSize {
		return nil, errors.New("totp: secret size must be >= 20 bytes")
	}
	alg, err := parseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	return &Manager{
		issuer:     cfg.Issuer,
		secretSize: uint(cfg.SecretSize),
		opts: totp.ValidateOpts{
			Period:    uint(cfg.Period),
			Skew:      uint(cfg.Skew),
			Digits:    otp.Digits(cfg.Digits),
			Algorithm: alg,
		},
	}, nil
}

// Generate creates a new random secret for account and its otpauth:// URI.
func (m *Manager) Generate(account string) (Key, error) {
	if account == "" {
		return Key{}, errors.New("totp: account is required")
	}
	k, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: account,
		Period:      m.opts.Period,
		SecretSize:  m.secretSize,
		Digits:      m.opts.Digits,
		Algorithm:   m.opts.Algorithm,
	})
	if err != nil {
		return Key{}, err
	}
	return Key{Secret: k.Secret(), URI: k.URL(), key: k}, nil
}

// Verify reports whether code is valid for secret at now, within the
// configured skew. Malformed codes and secrets simply fail.
func (m *Manager) Verify(secret, code string, now time.Time) bool {
	code = strings.TrimSpace(code)
	if len(code) != m.opts.Digits.Length() || !isNumeric(code) {
		return false
	}
	if secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, now.UTC(), m.opts)
	return err == nil && ok
}

// CodeAt returns the code for secret at t. It is meant for tests and tooling.
func (m *Manager) CodeAt(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t.UTC(), m.opts)
}

// Digits returns the configured code length.
func (m *Manager) Digits() int {
	return m.opts.Digits.Length()
}

// QRCodeDataURL renders the key's provisioning URI as a PNG data URL.
func (k Key) QRCodeDataURL(size int) (string, error) {
	key := k.key
	if key == nil {
		var err error
		if key, err = otp.NewKeyFromURL(k.URI); err != nil {
			return "", err
		}
	}

	img, err := key.Image(size, size)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func parseAlgorithm(name string) (otp.Algorithm, error) {
	switch strings.ToUpper(name) {
	case "", "SHA1":
		return otp.AlgorithmSHA1, nil
	case "SHA256":
		return otp.AlgorithmSHA256, nil
	case "SHA512":
		return otp.AlgorithmSHA512, nil
	default:
		return otp.AlgorithmSHA1, errors.New("totp: unsupported algorithm " + name)
	}
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
