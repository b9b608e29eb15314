// Package config handles configuration for the server component,
// including defaults, JSON overlay, environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Config holds runtime settings for the gophauth server.
//
// Fields:
//   - EndpointAddrGRPC: bind address for the public gRPC endpoint.
//   - MetricsAddr: bind address for the Prometheus /metrics endpoint; empty disables it.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty selects in-memory storage.
//   - SecretKey / Issuer / Audience / Leeway: JWT signing parameters.
//   - AccessTokenValidityDuration / RefreshTokenValidityDuration: token lifetimes.
//   - EncryptionKey: AES key for the value-encryption helper; empty disables it.
//   - RedisAddr: lockout counters and reset tokens; empty keeps them in process.
//   - AMQPURL: notification broker; empty logs events instead.
//   - AdminUserName: an existing account promoted to Admin at startup.
//   - OTELEndpoint: OTLP/HTTP trace collector URL; empty disables tracing.
type Config struct {
	EndpointAddrGRPC             string        `env:"GOPHAUTH_GRPC_ADDR"`
	MetricsAddr                  string        `env:"GOPHAUTH_METRICS_ADDR"`
	DatabaseDSN                  string        `env:"GOPHAUTH_DATABASE_DSN"`
	SecretKey                    string        `env:"GOPHAUTH_JWT_SECRET"`
	Issuer                       string        `env:"GOPHAUTH_JWT_ISSUER"`
	Audience                     string        `env:"GOPHAUTH_JWT_AUDIENCE"`
	Leeway                       time.Duration `env:"GOPHAUTH_JWT_LEEWAY"`
	AccessTokenValidityDuration  time.Duration `env:"GOPHAUTH_ACCESS_TTL"`
	RefreshTokenValidityDuration time.Duration `env:"GOPHAUTH_REFRESH_TTL"`
	EncryptionKey                string        `env:"GOPHAUTH_ENCRYPTION_KEY"`
	RedisAddr                    string        `env:"GOPHAUTH_REDIS_ADDR"`
	AMQPURL                      string        `env:"GOPHAUTH_AMQP_URL"`
	LockoutThreshold             int           `env:"GOPHAUTH_LOCKOUT_THRESHOLD"`
	LockoutDuration              time.Duration `env:"GOPHAUTH_LOCKOUT_DURATION"`
	ResetTokenTTL                time.Duration `env:"GOPHAUTH_RESET_TOKEN_TTL"`
	LogLevel                     string        `env:"GOPHAUTH_LOG_LEVEL"`
	AdminUserName                string        `env:"GOPHAUTH_ADMIN_USER"`
	OTELEndpoint                 string        `env:"GOPHAUTH_OTEL_ENDPOINT"`
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secret key is insecure and must be overridden in production.
func (c *Config) LoadDefaults() {
	c.EndpointAddrGRPC = ":50051"
	c.MetricsAddr = ":9100"
	c.DatabaseDSN = ""
	c.SecretKey = "gophauth-development-secret-key-0123456789"
	c.Issuer = "gophauth"
	c.Audience = "gophauth-clients"
	c.Leeway = 0
	c.AccessTokenValidityDuration = 60 * time.Minute
	c.RefreshTokenValidityDuration = 7 * 24 * time.Hour
	c.EncryptionKey = ""
	c.RedisAddr = ""
	c.AMQPURL = ""
	c.LockoutThreshold = 5
	c.LockoutDuration = 15 * time.Minute
	c.ResetTokenTTL = time.Hour
	c.LogLevel = "info"
	c.AdminUserName = ""
	c.OTELEndpoint = ""
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if len(c.SecretKey) < 32 {
		errs = append(errs, errors.New("secret key must be at least 32 bytes"))
	}
	switch len(c.EncryptionKey) {
	case 0, 16, 24, 32:
	default:
		errs = append(errs, fmt.Errorf("encryption key must be 16, 24 or 32 bytes, got %d", len(c.EncryptionKey)))
	}
	if c.AccessTokenValidityDuration <= 0 {
		errs = append(errs, errors.New("access token validity must be positive"))
	}
	if c.RefreshTokenValidityDuration <= 0 {
		errs = append(errs, errors.New("refresh token validity must be positive"))
	}
	if c.Leeway < 0 {
		errs = append(errs, errors.New("leeway must not be negative"))
	}
	if c.LockoutThreshold < 0 {
		errs = append(errs, errors.New("lockout threshold must not be negative"))
	}
	if c.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("reset token ttl must be positive"))
	}

	return errors.Join(errs...)
}

// LoadConfig builds a Config from os.Args and the process environment.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load applies defaults, then an optional JSON file, then environment
// variables, then command-line flags, and validates the result.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
