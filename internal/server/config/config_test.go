package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, "", c.DatabaseDSN)
	assert.Equal(t, "gophauth", c.Issuer)
	assert.Equal(t, "gophauth-clients", c.Audience)
	assert.Equal(t, 60*time.Minute, c.AccessTokenValidityDuration)
	assert.Equal(t, 7*24*time.Hour, c.RefreshTokenValidityDuration)
	assert.Equal(t, time.Duration(0), c.Leeway)
	assert.Equal(t, 5, c.LockoutThreshold)
	assert.Equal(t, time.Hour, c.ResetTokenTTL)
	assert.NoError(t, c.Validate())
}

func TestLoad_DefaultsOnly(t *testing.T) {
	c, err := Load(nil)
	require.NoError(t, err)

	if diff := cmp.Diff(defaults(), c); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "short secret", mutate: func(c *Config) { c.SecretKey = "short" }, wantErr: "secret key"},
		{name: "bad encryption key", mutate: func(c *Config) { c.EncryptionKey = "abc" }, wantErr: "encryption key"},
		{name: "aes-128 key", mutate: func(c *Config) { c.EncryptionKey = "0123456789abcdef" }},
		{name: "aes-256 key", mutate: func(c *Config) { c.EncryptionKey = "0123456789abcdef0123456789abcdef" }},
		{name: "zero access ttl", mutate: func(c *Config) { c.AccessTokenValidityDuration = 0 }, wantErr: "access token"},
		{name: "negative leeway", mutate: func(c *Config) { c.Leeway = -time.Second }, wantErr: "leeway"},
		{name: "negative threshold", mutate: func(c *Config) { c.LockoutThreshold = -1 }, wantErr: "lockout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_Precedence(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"endpoint_addr_grpc":              ":7000",
		"database_dsn":                    "postgres://file",
		"issuer":                          "file-issuer",
		"access_token_validity_duration":  "30s",
		"refresh_token_validity_duration": "48h",
		"lockout_threshold":               3,
	})

	t.Setenv("GOPHAUTH_DATABASE_DSN", "postgres://env")
	t.Setenv("GOPHAUTH_JWT_LEEWAY", "5s")

	c, err := Load([]string{"-c", path, "-a", ":8000", "-redis", "localhost:6379"})
	require.NoError(t, err)

	want := defaults()
	want.EndpointAddrGRPC = ":8000"
	want.DatabaseDSN = "postgres://env"
	want.Issuer = "file-issuer"
	want.Leeway = 5 * time.Second
	want.AccessTokenValidityDuration = 30 * time.Second
	want.RefreshTokenValidityDuration = 48 * time.Hour
	want.LockoutThreshold = 3
	want.RedisAddr = "localhost:6379"

	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_InvalidResultIsRejected(t *testing.T) {
	_, err := Load([]string{"-s", "too-short"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret key")
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("GOPHAUTH_LOCKOUT_THRESHOLD", "many")

	_, err := Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}
