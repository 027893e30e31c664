// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveFlags builds the flag set the serve command carries, through the
// same registration the command itself uses.
func serveFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	RegisterFlags(fs)
	return fs
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memberdir.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "postgres", cfg.SessionStore)
	assert.False(t, cfg.CookieSecure)
	assert.Equal(t, uint32(1), cfg.Argon2.Time)
	assert.Equal(t, uint32(64*1024), cfg.Argon2.Memory)
	assert.Equal(t, uint8(4), cfg.Argon2.Threads)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFileNoFlags(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default().ListenAddr, cfg.ListenAddr)
}

func TestLoad_NoFileUnchangedFlags(t *testing.T) {
	// A bare invocation: no config file, flags registered but none set.
	// The flag defaults must land as a valid configuration instead of
	// clobbering it with zero values.
	cfg, err := Load("", serveFlags())
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.ListenAddr, cfg.ListenAddr)
	assert.Equal(t, def.MetricsAddr, cfg.MetricsAddr)
	assert.Equal(t, def.LogFormat, cfg.LogFormat)
	assert.Equal(t, def.LogLevel, cfg.LogLevel)
	assert.Equal(t, def.SessionStore, cfg.SessionStore)
	assert.Equal(t, def.CookieSecure, cfg.CookieSecure)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/memberdir.yaml", nil)
	assert.Error(t, err)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfigFile(t, `
listen_addr: "0.0.0.0:9999"
log_format: text
session_store: memory
argon2:
  time: 3
  memory: 131072
  threads: 2
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9999", cfg.ListenAddr)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "memory", cfg.SessionStore)
	assert.Equal(t, uint32(3), cfg.Argon2.Time)
	assert.Equal(t, uint32(131072), cfg.Argon2.Memory)
	assert.Equal(t, uint8(2), cfg.Argon2.Threads)

	// Keys not in the file keep their defaults.
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
}

func TestLoad_FlagOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `listen_addr: "0.0.0.0:9999"`)

	fs := serveFlags()
	require.NoError(t, fs.Set("listen-addr", "127.0.0.1:7777"))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7777", cfg.ListenAddr)
}

func TestLoad_UnsetFlagKeepsFileValue(t *testing.T) {
	// A flag left at its default must not clobber a file value.
	path := writeConfigFile(t, `listen_addr: "0.0.0.0:9999"`)

	cfg, err := Load(path, serveFlags())
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9999", cfg.ListenAddr)
}

func TestLoad_DashedFlagsMapToUnderscoreKeys(t *testing.T) {
	fs := serveFlags()
	require.NoError(t, fs.Set("metrics-addr", "127.0.0.1:9200"))
	require.NoError(t, fs.Set("session-store", "memory"))
	require.NoError(t, fs.Set("cookie-secure", "true"))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9200", cfg.MetricsAddr)
	assert.Equal(t, "memory", cfg.SessionStore)
	assert.True(t, cfg.CookieSecure)
}

func TestLoad_SecretsFromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/memberdir")
	t.Setenv("MEMBERDIR_SESSION_SECRET", "hunter2")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost:5432/memberdir", cfg.DatabaseURL)
	assert.Equal(t, "hunter2", cfg.SessionSecret)
	assert.NoError(t, cfg.RequireSecrets())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "empty listen addr",
			mutate:  func(c *Config) { c.ListenAddr = "" },
			wantErr: "listen_addr",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.LogFormat = "xml" },
			wantErr: "log_format",
		},
		{
			name:    "bad session store",
			mutate:  func(c *Config) { c.SessionStore = "redis" },
			wantErr: "session_store",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRequireSecrets(t *testing.T) {
	tests := []struct {
		name        string
		databaseURL string
		secret      string
		wantErr     string
	}{
		{name: "both present", databaseURL: "postgres://x", secret: "s"},
		{name: "missing database url", secret: "s", wantErr: "DATABASE_URL"},
		{name: "missing session secret", databaseURL: "postgres://x", wantErr: "MEMBERDIR_SESSION_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.DatabaseURL = tt.databaseURL
			cfg.SessionSecret = tt.secret
			err := cfg.RequireSecrets()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
