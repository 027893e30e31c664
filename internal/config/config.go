// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

// Package config loads server configuration from a YAML file, command
// line flags, and the environment. Precedence, lowest to highest:
// defaults, config file, flags, environment.
package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Argon2 carries the password hashing work factor.
type Argon2 struct {
	Time    uint32 `koanf:"time"`
	Memory  uint32 `koanf:"memory"`
	Threads uint8  `koanf:"threads"`
}

// Config holds the full server configuration.
type Config struct {
	ListenAddr  string `koanf:"listen_addr"`
	MetricsAddr string `koanf:"metrics_addr"`
	LogFormat   string `koanf:"log_format"`
	LogLevel    string `koanf:"log_level"`

	// DatabaseURL and SessionSecret are secrets; they come from the
	// environment (DATABASE_URL, MEMBERDIR_SESSION_SECRET) and are
	// never written to a config file.
	DatabaseURL   string `koanf:"-"`
	SessionSecret string `koanf:"-"`

	// SessionStore selects "postgres" (default, survives restarts) or
	// "memory" (single process only).
	SessionStore string `koanf:"session_store"`

	// CookieSecure must be true in any TLS deployment; the login cookie
	// is then only sent over HTTPS.
	CookieSecure bool `koanf:"cookie_secure"`

	Argon2 Argon2 `koanf:"argon2"`
}

// Default returns the development defaults.
func Default() Config {
	return Config{
		ListenAddr:   "127.0.0.1:8080",
		MetricsAddr:  "127.0.0.1:9100",
		LogFormat:    "json",
		LogLevel:     "info",
		SessionStore: "postgres",
		CookieSecure: false,
		Argon2: Argon2{
			Time:    1,
			Memory:  64 * 1024,
			Threads: 4,
		},
	}
}

// RegisterFlags registers the serve command's flags on fs, seeded with
// the values from Default(). An unchanged flag merges its default into
// the configuration, so the registered defaults must be the real ones.
func RegisterFlags(fs *pflag.FlagSet) {
	def := Default()
	fs.String("listen-addr", def.ListenAddr, "HTTP listen address")
	fs.String("metrics-addr", def.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", def.LogFormat, "log format (json or text)")
	fs.String("log-level", def.LogLevel, "log level (debug, info, warn, error)")
	fs.String("session-store", def.SessionStore, "session store backend (postgres or memory)")
	fs.Bool("cookie-secure", def.CookieSecure, "mark cookies Secure (TLS deployments)")
}

// Load builds the configuration. path may be empty (no config file);
// flags may be nil (no flag overrides).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		// Flags are spelled with dashes; config keys with underscores.
		p := posflag.ProviderWithValue(flags, ".", k, func(key, value string) (string, interface{}) {
			return strings.ReplaceAll(key, "-", "_"), value
		})
		if err := k.Load(p, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.SessionSecret = os.Getenv("MEMBERDIR_SESSION_SECRET")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("listen_addr is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.SessionStore != "postgres" && c.SessionStore != "memory" {
		return oops.Code("CONFIG_INVALID").Errorf("session_store must be 'postgres' or 'memory', got %q", c.SessionStore)
	}
	return nil
}

// RequireSecrets checks the externally supplied secrets are present.
// Called by commands that actually serve traffic; migrate-style
// commands only need the database URL.
func (c *Config) RequireSecrets() error {
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}
	if c.SessionSecret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("MEMBERDIR_SESSION_SECRET environment variable is required")
	}
	return nil
}
