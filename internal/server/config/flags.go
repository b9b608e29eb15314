package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

var allowedFlags = []string{"-a", "-m", "-d", "-s", "-t", "-r", "-k", "-redis", "-amqp", "-l", "-admin"}

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-m string   metrics bind address, empty disables
//	-d string   PostgreSQL DSN, empty selects in-memory storage
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, days
//	-k string   encryption key
//	-redis      Redis address
//	-amqp       AMQP broker URL
//	-l string   log level
//	-admin      user name to promote to Admin at startup
//
// Arguments are filtered with flagx.FilterArgs first so the -c flag and any
// flags owned by other components do not break parsing.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, allowedFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "address and port for metrics")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration/time.Minute), "access token validity (in minutes)")
	refreshTokenValidity := fs.Int("r", int(config.RefreshTokenValidityDuration/(24*time.Hour)), "refresh token validity (in days)")

	fs.StringVar(&config.EncryptionKey, "k", config.EncryptionKey, "encryption key")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")
	fs.StringVar(&config.AMQPURL, "amqp", config.AMQPURL, "amqp url")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.AdminUserName, "admin", config.AdminUserName, "user name to promote to Admin")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	// Only overwrite durations that were given explicitly so sub-minute or
	// sub-day values from the file or environment survive.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
		case "r":
			config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidity) * 24 * time.Hour
		}
	})

	return nil
}
