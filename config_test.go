package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvVars = []string{
	"MCP_DB_DRIVER", "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER",
	"POSTGRES_PASSWORD", "POSTGRES_DB", "POSTGRES_SSLMODE", "MCP_SQLITE_PATH",
	"MCP_READ_ONLY", "MCP_LOG_LEVEL", "MCP_LOG_FORMAT", "MCP_LOG_BACKEND",
	"MCP_HTTP_ADDR", "MCP_TRANSPORT", "MCP_KEEPALIVE_COUNT", "MCP_KEEPALIVE_INTERVAL",
}

// clearConfigEnv blanks every variable LoadConfig reads; empty counts as unset.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, name := range configEnvVars {
		t.Setenv(name, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, "mcp-postgres-db", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "demouser", cfg.Database.User)
	assert.Equal(t, "demo123", cfg.Database.Password)
	assert.Equal(t, "demodb", cfg.Database.Name)
	assert.Equal(t, "0.0.0.0:8100", cfg.HTTPAddr)
	assert.Equal(t, 3, cfg.KeepAliveCount)
	assert.Equal(t, time.Second, cfg.KeepAliveInterval)
}

func TestLoadConfig_Environment(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("POSTGRES_HOST", "db.example.com")
	t.Setenv("POSTGRES_PORT", "6543")
	t.Setenv("POSTGRES_USER", "reader")
	t.Setenv("POSTGRES_PASSWORD", "hunter2")
	t.Setenv("POSTGRES_DB", "analytics")
	t.Setenv("MCP_READ_ONLY", "true")
	t.Setenv("MCP_LOG_BACKEND", "zap")
	t.Setenv("MCP_TRANSPORT", "stdio")
	t.Setenv("MCP_KEEPALIVE_INTERVAL", "250ms")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "reader", cfg.Database.User)
	assert.Equal(t, "hunter2", cfg.Database.Password)
	assert.Equal(t, "analytics", cfg.Database.Name)
	assert.True(t, cfg.Database.ReadOnly)
	assert.Equal(t, "zap", cfg.Log.Backend)
	assert.Equal(t, "stdio", cfg.Transport)
	assert.Equal(t, 250*time.Millisecond, cfg.KeepAliveInterval)
}

func TestLoadConfig_UnparsableEnvKeepsDefault(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("POSTGRES_PORT", "not-a-port")
	t.Setenv("MCP_READ_ONLY", "maybe")
	t.Setenv("MCP_KEEPALIVE_INTERVAL", "soon")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.False(t, cfg.Database.ReadOnly)
	assert.Equal(t, time.Second, cfg.KeepAliveInterval)
}

func TestLoadConfig_File(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: sqlite
  sqlite_path: /var/lib/mcp/data.db
  read_only: true
log:
  level: debug
  format: json
http_addr: 127.0.0.1:9000
keepalive_count: 5
`), 0o600))

	t.Setenv("MCP_HTTP_ADDR", "127.0.0.1:9100")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/var/lib/mcp/data.db", cfg.Database.SQLitePath)
	assert.True(t, cfg.Database.ReadOnly)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "logrus", cfg.Log.Backend, "unset keys keep their defaults")
	assert.Equal(t, 5, cfg.KeepAliveCount)
	assert.Equal(t, "127.0.0.1:9100", cfg.HTTPAddr, "environment wins over the file")
}

func TestLoadConfig_Errors(t *testing.T) {
	clearConfigEnv(t)

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("database: [unclosed"), 0o600))
	_, err = LoadConfig(bad)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"driver", func(c *Config) { c.Database.Driver = "oracle" }, "unsupported database driver: oracle"},
		{"transport", func(c *Config) { c.Transport = "websocket" }, "unsupported transport: websocket"},
		{"keepalive count", func(c *Config) { c.KeepAliveCount = -1 }, "keepalive count"},
		{"keepalive interval", func(c *Config) { c.KeepAliveInterval = -time.Second }, "keepalive interval"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}
