package config

import (
	"bytes"
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "heuristic", cfg.Oracle.Provider)
	assert.Equal(t, 30*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, uint64(2), cfg.Oracle.Retries)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, filepath.Join(".quorum", "quorum.db"), cfg.SQLitePath())
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("QUORUM_STORE", "redis")
	t.Setenv("QUORUM_REDIS_ADDR", "cache:6380")
	t.Setenv("QUORUM_REDIS_TTL", "1h")
	t.Setenv("QUORUM_ORACLE_PROVIDER", "openai")
	t.Setenv("QUORUM_ORACLE_TIMEOUT", "5s")
	t.Setenv("QUORUM_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, cfg.Store)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
	assert.Equal(t, "openai", cfg.Oracle.Provider)
	assert.Equal(t, 5*time.Second, cfg.Oracle.Timeout)

	level, err := ParseLevel(cfg.LogLevel)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("QUORUM_SQLITE_PATH=/tmp/q.db\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("QUORUM_SQLITE_PATH") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/q.db", cfg.SQLitePath())
}

func TestLoad_RejectsUnknownValues(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("QUORUM_STORE", "postgres")
	_, err := Load()
	assert.ErrorContains(t, err, "unknown store")

	t.Setenv("QUORUM_STORE", "file")
	t.Setenv("QUORUM_LOG_LEVEL", "loud")
	_, err = Load()
	assert.ErrorContains(t, err, "unknown log level")
}

func TestLoad_SecurityKeys(t *testing.T) {
	t.Chdir(t.TempDir())
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	old := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{3}, 32))
	t.Setenv("QUORUM_SECURITY_ENCRYPTION_KEY", key)
	t.Setenv("QUORUM_SECURITY_FALLBACK_KEYS", old)
	t.Setenv("QUORUM_SECURITY_PII_FIELDS", "password,^ssn$")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"password", "^ssn$"}, cfg.Security.PIIFieldsRegex)

	active, fallback, err := cfg.Security.Keys()
	require.NoError(t, err)
	assert.Len(t, active, 32)
	require.Len(t, fallback, 1)
	assert.Equal(t, byte(3), fallback[0][0])

	t.Setenv("QUORUM_SECURITY_ENCRYPTION_KEY", base64.StdEncoding.EncodeToString([]byte("short")))
	_, err = Load()
	assert.ErrorContains(t, err, "32 bytes")

	t.Setenv("QUORUM_SECURITY_ENCRYPTION_KEY", key)
	t.Setenv("QUORUM_SECURITY_PII_FIELDS", "([")
	_, err = Load()
	assert.ErrorContains(t, err, "invalid PII field pattern")
}

func TestSecurityConfig_Disabled(t *testing.T) {
	active, fallback, err := SecurityConfig{}.Keys()
	require.NoError(t, err)
	assert.Nil(t, active)
	assert.Nil(t, fallback)
}
