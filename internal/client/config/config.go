package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the authctl CLI.
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	RequestTimeout      time.Duration
	// DataDir holds the saved session; empty disables it.
	DataDir             string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.RequestTimeout = 10 * time.Second
	c.DataDir = ".authctl"
}

// LoadConfig builds a Config from os.Args.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load applies defaults, then JSON (if -c is given), then flags. Later
// sources take precedence over earlier ones.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
