package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig holds the connection parameters. It is read once at startup
// and never mutated afterwards.
type DatabaseConfig struct {
	Driver     string `yaml:"driver"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
	SSLMode    string `yaml:"sslmode"`
	SQLitePath string `yaml:"sqlite_path"`
	ReadOnly   bool   `yaml:"read_only"`
}

// LogConfig selects the logger backend and its output.
type LogConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Backend string `yaml:"backend"`
}

// Config is the process configuration.
type Config struct {
	Database          DatabaseConfig `yaml:"database"`
	Log               LogConfig      `yaml:"log"`
	HTTPAddr          string         `yaml:"http_addr"`
	Transport         string         `yaml:"transport"`
	KeepAliveCount    int            `yaml:"keepalive_count"`
	KeepAliveInterval time.Duration  `yaml:"keepalive_interval"`
}

// DefaultConfig returns the fallback values used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:     "postgres",
			Host:       "mcp-postgres-db",
			Port:       5432,
			User:       "demouser",
			Password:   "demo123",
			Name:       "demodb",
			SSLMode:    "disable",
			SQLitePath: "mcp.db",
		},
		Log: LogConfig{
			Level:   "info",
			Format:  "text",
			Backend: "logrus",
		},
		HTTPAddr:          "0.0.0.0:8100",
		Transport:         "http",
		KeepAliveCount:    3,
		KeepAliveInterval: time.Second,
	}
}

// LoadConfig starts from DefaultConfig, overlays the YAML file at path (if
// path is non-empty) and then the environment. Environment wins.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	db := &cfg.Database
	db.Driver = stringOr("MCP_DB_DRIVER", db.Driver)
	db.Host = stringOr("POSTGRES_HOST", db.Host)
	db.Port = intOr("POSTGRES_PORT", db.Port)
	db.User = stringOr("POSTGRES_USER", db.User)
	db.Password = stringOr("POSTGRES_PASSWORD", db.Password)
	db.Name = stringOr("POSTGRES_DB", db.Name)
	db.SSLMode = stringOr("POSTGRES_SSLMODE", db.SSLMode)
	db.SQLitePath = stringOr("MCP_SQLITE_PATH", db.SQLitePath)
	db.ReadOnly = boolOr("MCP_READ_ONLY", db.ReadOnly)

	cfg.Log.Level = stringOr("MCP_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = stringOr("MCP_LOG_FORMAT", cfg.Log.Format)
	cfg.Log.Backend = stringOr("MCP_LOG_BACKEND", cfg.Log.Backend)

	cfg.HTTPAddr = stringOr("MCP_HTTP_ADDR", cfg.HTTPAddr)
	cfg.Transport = stringOr("MCP_TRANSPORT", cfg.Transport)
	cfg.KeepAliveCount = intOr("MCP_KEEPALIVE_COUNT", cfg.KeepAliveCount)
	cfg.KeepAliveInterval = durationOr("MCP_KEEPALIVE_INTERVAL", cfg.KeepAliveInterval)
}

// Validate rejects values the server cannot start with.
func (c Config) Validate() error {
	if _, err := adapterFor(c.Database.Driver); err != nil {
		return err
	}
	switch c.Transport {
	case "http", "stdio":
	default:
		return fmt.Errorf("unsupported transport: %s", c.Transport)
	}
	if c.KeepAliveCount < 0 {
		return fmt.Errorf("keepalive count must not be negative")
	}
	if c.KeepAliveInterval < 0 {
		return fmt.Errorf("keepalive interval must not be negative")
	}
	return nil
}

// stringOr returns the value of the named environment variable, or
// defaultValue if the variable is unset or empty.
func stringOr(name, defaultValue string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return defaultValue
}

// intOr parses the named environment variable as a decimal integer. Returns
// defaultValue if the variable is unset, empty, or cannot be parsed.
func intOr(name string, defaultValue int) int {
	v := os.Getenv(name)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func boolOr(name string, defaultValue bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

// durationOr parses the named environment variable as a time.Duration (e.g.
// "500ms", "1s").
func durationOr(name string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}
