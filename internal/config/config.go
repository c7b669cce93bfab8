// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekey Contributors

// Package config loads server configuration from an optional YAML file,
// command-line flags, and environment variables. Precedence is flags over
// file over defaults; secrets come from the environment only.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Server configures the JSON API listener.
type Server struct {
	Addr string `koanf:"addr"`
}

// Metrics configures the observability listener. An empty address disables
// the metrics server.
type Metrics struct {
	Addr string `koanf:"addr"`
}

// Database configures the PostgreSQL connection.
type Database struct {
	URL string `koanf:"url"`
}

// Session configures JWT session issuance.
type Session struct {
	Secret string        `koanf:"secret"`
	Issuer string        `koanf:"issuer"`
	TTL    time.Duration `koanf:"ttl"`
}

// SMTP configures outbound email delivery.
type SMTP struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
	BaseURL  string `koanf:"base_url"`
}

// Log configures the default logger.
type Log struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Config is the full server configuration.
type Config struct {
	Server   Server   `koanf:"server"`
	Metrics  Metrics  `koanf:"metrics"`
	Database Database `koanf:"database"`
	Session  Session  `koanf:"session"`
	SMTP     SMTP     `koanf:"smtp"`
	Log      Log      `koanf:"log"`
}

// Default returns the configuration used when no file or flags are given.
func Default() Config {
	return Config{
		Server:  Server{Addr: "127.0.0.1:8080"},
		Metrics: Metrics{Addr: "127.0.0.1:9100"},
		Session: Session{Issuer: "gatekey", TTL: 24 * time.Hour},
		SMTP:    SMTP{Port: 587},
		Log:     Log{Format: "json", Level: "info"},
	}
}

// Load builds the configuration. path may be empty (no config file); flags
// may be nil. Flags use dotted names matching the YAML keys, e.g.
// --server.addr. Secrets are then overlaid from the environment:
// DATABASE_URL, GATEKEY_SESSION_SECRET, and GATEKEY_SMTP_PASSWORD.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		// Passing k makes unchanged flag defaults yield to file values;
		// explicitly set flags always win.
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	applyEnv(&cfg)
	return &cfg, nil
}

// applyEnv overlays secret values from the environment. Secrets never live
// in the config file or on the command line.
func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("DATABASE_URL"); ok {
		cfg.Database.URL = v
	}
	if v, ok := os.LookupEnv("GATEKEY_SESSION_SECRET"); ok {
		cfg.Session.Secret = v
	}
	if v, ok := os.LookupEnv("GATEKEY_SMTP_PASSWORD"); ok {
		cfg.SMTP.Password = v
	}
}

// Validate checks that the configuration is complete enough to serve.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database URL is required (set DATABASE_URL or database.url)")
	}
	if c.Session.Secret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("session secret is required (set GATEKEY_SESSION_SECRET)")
	}
	if c.Session.TTL < 0 {
		return oops.Code("CONFIG_INVALID").Errorf("session TTL cannot be negative")
	}
	if c.SMTP.Host == "" {
		return oops.Code("CONFIG_INVALID").Errorf("SMTP host is required")
	}
	if c.SMTP.Username == "" && c.SMTP.From == "" {
		return oops.Code("CONFIG_INVALID").Errorf("SMTP username or from address is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log format must be 'json' or 'text', got %q", c.Log.Format)
	}
	return nil
}
