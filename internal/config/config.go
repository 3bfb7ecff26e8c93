// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Named JWT_REFRESH_TTL values. Anything else must parse as a time.Duration.
const (
	// RefreshTTLDefault selects the built-in 30 day refresh lifetime.
	RefreshTTLDefault = "default"
	// RefreshTTLNever selects an effectively unbounded lifetime; a concrete
	// far-future expires_at is still computed so storage stays uniform.
	RefreshTTLNever = "never"

	defaultRefreshTTL = 720 * time.Hour   // 30d
	neverRefreshTTL   = 87600 * time.Hour // 10y
)

// ErrConfiguration is returned when a server-side setting has an unrecognized
// shape. Fatal at startup; never recoverable per request.
var ErrConfiguration = errors.New("invalid configuration")

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; signs access tokens.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; verifies access tokens.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "umbra-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "umbra-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime: a duration (e.g. "168h"),
	// "default" (30d), or "never" (far-future expiry).
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// OTLPEndpoint is the OTLP gRPC collector endpoint (e.g. localhost:4317).
	// Empty disables telemetry export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ISSUER", "umbra-auth")
	v.SetDefault("JWT_AUDIENCE", "umbra-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("OTLP_ENDPOINT", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("%w: HTTP_ADDR must be set", ErrConfiguration)
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, fmt.Errorf("%w: BCRYPT_COST must be between 4 and 31", ErrConfiguration)
	}

	if _, err := cfg.AccessTTL(); err != nil {
		return nil, err
	}
	if _, err := cfg.RefreshTTL(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration.
func (c *Config) AccessTTL() (time.Duration, error) {
	if c.JWTAccessTTL == "" {
		return 15 * time.Minute, nil
	}
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: JWT_ACCESS_TTL must be a positive duration, got %q", ErrConfiguration, c.JWTAccessTTL)
	}
	return d, nil
}

// RefreshTTL resolves JWTRefreshTTL to a concrete duration. "default" and
// "never" are the only named values; any other string must be a positive Go
// duration.
func (c *Config) RefreshTTL() (time.Duration, error) {
	switch c.JWTRefreshTTL {
	case "", RefreshTTLDefault:
		return defaultRefreshTTL, nil
	case RefreshTTLNever:
		return neverRefreshTTL, nil
	}
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: JWT_REFRESH_TTL must be a positive duration, %q, or %q; got %q",
			ErrConfiguration, RefreshTTLDefault, RefreshTTLNever, c.JWTRefreshTTL)
	}
	return d, nil
}
