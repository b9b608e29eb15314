package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept
// both Go duration strings ("15m") and integer nanoseconds. Absent keys
// keep the value already present in Config.
type JsonConfig struct {
	EndpointAddrGRPC             *string         `json:"endpoint_addr_grpc"`
	MetricsAddr                  *string         `json:"metrics_addr"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	SecretKey                    *string         `json:"secret_key"`
	Issuer                       *string         `json:"issuer"`
	Audience                     *string         `json:"audience"`
	Leeway                       *timex.Duration `json:"leeway"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	EncryptionKey                *string         `json:"encryption_key"`
	RedisAddr                    *string         `json:"redis_addr"`
	AMQPURL                      *string         `json:"amqp_url"`
	LockoutThreshold             *int            `json:"lockout_threshold"`
	LockoutDuration              *timex.Duration `json:"lockout_duration"`
	ResetTokenTTL                *timex.Duration `json:"reset_token_ttl"`
	LogLevel                     *string         `json:"log_level"`
	AdminUserName                *string         `json:"admin_user_name"`
	OTELEndpoint                 *string         `json:"otel_endpoint"`
}

// parseJson overlays the file named by -c/-config, if any, onto config.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFile(args)

	// nothing to load
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.MetricsAddr, c.MetricsAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.Issuer, c.Issuer)
	setString(&config.Audience, c.Audience)
	setString(&config.EncryptionKey, c.EncryptionKey)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.AMQPURL, c.AMQPURL)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.AdminUserName, c.AdminUserName)
	setString(&config.OTELEndpoint, c.OTELEndpoint)

	if c.Leeway != nil {
		config.Leeway = c.Leeway.Duration
	}
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.LockoutThreshold != nil {
		config.LockoutThreshold = *c.LockoutThreshold
	}
	if c.LockoutDuration != nil {
		config.LockoutDuration = c.LockoutDuration.Duration
	}
	if c.ResetTokenTTL != nil {
		config.ResetTokenTTL = c.ResetTokenTTL.Duration
	}

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
