// Package config loads process settings from the environment.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name, e.g. QUORUM_STORE.
const Prefix = "QUORUM"

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Config holds every setting a quorum process reads at startup.
type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	Store string `envconfig:"STORE" default:"memory"`
	// Dir is the base directory of the file store and the default sqlite location.
	Dir       string `envconfig:"DIR" default:".quorum"`
	SQLiteDSN string `envconfig:"SQLITE_PATH"`
	Redis     RedisConfig
	FlowsDir  string `envconfig:"FLOWS_DIR"`

	Oracle OracleConfig

	Security SecurityConfig

	HTTPAddr      string `envconfig:"HTTP_ADDR" default:":8080"`
	TraceExporter string `envconfig:"TRACE_EXPORTER" default:"none"`
}

// RedisConfig is read from QUORUM_REDIS_*.
type RedisConfig struct {
	Addr     string        `envconfig:"ADDR" default:"localhost:6379"`
	Password string        `envconfig:"PASSWORD"`
	DB       int           `envconfig:"DB" default:"0"`
	Prefix   string        `envconfig:"PREFIX" default:"quorum:"`
	TTL      time.Duration `envconfig:"TTL" default:"0"`
}

// OracleConfig is read from QUORUM_ORACLE_*.
type OracleConfig struct {
	// Provider is "heuristic" or an LLM provider name.
	Provider string        `envconfig:"PROVIDER" default:"heuristic"`
	Model    string        `envconfig:"MODEL"`
	BaseURL  string        `envconfig:"BASE_URL"`
	APIKey   string        `envconfig:"API_KEY"`
	Timeout  time.Duration `envconfig:"TIMEOUT" default:"30s"`
	Retries  uint64        `envconfig:"RETRIES" default:"2"`
}

// SecurityConfig is read from QUORUM_SECURITY_*. Keys are base64 encoded
// 32 byte AES keys.
type SecurityConfig struct {
	EncryptionKey  string   `envconfig:"ENCRYPTION_KEY"`
	FallbackKeys   []string `envconfig:"FALLBACK_KEYS"`
	PIIFieldsRegex []string `envconfig:"PII_FIELDS"`
}

// Keys decodes the active and fallback keys. Active is nil when encryption is off.
func (s SecurityConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if s.EncryptionKey == "" {
		return nil, nil, nil
	}
	active, err = decodeKey(s.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("encryption key: %w", err)
	}
	for i, k := range s.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("fallback key %d: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Load reads .env files (missing ones are ignored) and then the environment.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreFile, StoreRedis, StoreSQLite:
	default:
		return fmt.Errorf("unknown store %q (memory, file, redis, sqlite)", c.Store)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, _, err := c.Security.Keys(); err != nil {
		return err
	}
	for _, p := range c.Security.PIIFieldsRegex {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid PII field pattern %q: %w", p, err)
		}
	}
	switch c.TraceExporter {
	case "none", "stdout":
	default:
		return fmt.Errorf("unknown trace exporter %q (none, stdout)", c.TraceExporter)
	}
	return nil
}

// SQLitePath returns the database path, defaulting to a file under Dir.
func (c *Config) SQLitePath() string {
	if c.SQLiteDSN != "" {
		return c.SQLiteDSN
	}
	return filepath.Join(c.Dir, "quorum.db")
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}
