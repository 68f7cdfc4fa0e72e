package authcore

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "AUTHCORE_"

// LoadConfig reads a YAML file over DefaultConfig, applies AUTHCORE_*
// environment overrides, loads key files and validates the result. An empty
// path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.loadKeyFiles(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(envPrefix + key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

func (c *Config) applyEnvOverrides() {
	// JWT
	if v, ok := getEnvStr("JWT_ACCESS_KEY"); ok {
		c.JWT.AccessKey = []byte(v)
	}
	if v, ok := getEnvStr("JWT_REFRESH_KEY"); ok {
		c.JWT.RefreshKey = []byte(v)
	}
	if v, ok := getEnvStr("JWT_SIGNING_METHOD"); ok {
		c.JWT.SigningMethod = strings.ToLower(v)
	}
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvDur("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvDur("JWT_REFRESH_TTL"); ok {
		c.JWT.RefreshTTL = v
	}

	// TOTP
	if v, ok := getEnvStr("TOTP_ISSUER"); ok {
		c.TOTP.Issuer = v
	}

	// LIMITS
	if v, ok := getEnvBool("LIMITS_LOGIN_ENABLED"); ok {
		c.Limits.Login.Enabled = v
	}
	if v, ok := getEnvBool("LIMITS_MFA_ENABLED"); ok {
		c.Limits.MFA.Enabled = v
	}

	// BACKENDS
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Redis.DB = v
	}
	if v, ok := getEnvStr("POSTGRES_DSN"); ok {
		c.Postgres.DSN = v
	}

	// LOG
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}
	if v, ok := getEnvBool("LOG_DEVELOPMENT"); ok {
		c.Log.Development = v
	}
}

// loadKeyFiles fills empty key fields from their *KeyFile paths.
func (c *Config) loadKeyFiles() error {
	files := []struct {
		path string
		dst  *[]byte
	}{
		{c.JWT.AccessKeyFile, &c.JWT.AccessKey},
		{c.JWT.RefreshKeyFile, &c.JWT.RefreshKey},
		{c.JWT.AccessPublicKeyFile, &c.JWT.AccessPublicKey},
		{c.JWT.RefreshPublicKeyFile, &c.JWT.RefreshPublicKey},
	}
	for _, f := range files {
		if f.path == "" || len(*f.dst) > 0 {
			continue
		}
		b, err := os.ReadFile(f.path)
		if err != nil {
			return fmt.Errorf("read key file: %w", err)
		}
		*f.dst = []byte(strings.TrimSpace(string(b)))
	}
	return nil
}
