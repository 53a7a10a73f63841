package cfgmng

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadConfig(t *testing.T) {
	type appConfig struct {
		Name  string `mapstructure:"name"`
		Debug bool   `mapstructure:"debug"`
	}

	dir := writeConfig(t, "name: table-api\n")

	cfg, err := LoadConfig[appConfig](dir, "config", WithDefaults(map[string]any{"debug": false}), WithEnvPrefix("CFGTEST"))
	require.NoError(t, err)
	assert.Equal(t, "table-api", cfg.Name)
	assert.False(t, cfg.Debug)

	t.Setenv("CFGTEST_DEBUG", "true")
	cfg, err = LoadConfig[appConfig](dir, "config", WithDefaults(map[string]any{"debug": false}), WithEnvPrefix("CFGTEST"))
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	type appConfig struct {
		Name string `mapstructure:"name"`
	}

	_, err := LoadConfig[appConfig](t.TempDir(), "config")
	assert.Error(t, err)

	cfg, err := LoadConfig[appConfig](t.TempDir(), "config", WithOptionalFile(), WithDefaults(map[string]any{"name": "fallback"}))
	require.NoError(t, err)
	assert.Equal(t, "fallback", cfg.Name)
}

func TestLoadServerConfig(t *testing.T) {
	dir := writeConfig(t, `
http:
  addr: ":9090"
database:
  dsn: postgres://localhost/tables
auth:
  jwt_secret: s3cret
  cache_ttl: 30s
batch:
  workers: 4
`)
	t.Setenv("TABLEAPI_LOGGING_LEVEL", "debug")
	t.Setenv("TABLEAPI_CACHE_REDIS_ADDR", "redis:6379")

	cfg, err := LoadServerConfig(dir, "config")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, ":8086", cfg.HTTP.HealthAddr)
	assert.Equal(t, 15*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "postgres://localhost/tables", cfg.Database.DSN)
	assert.Equal(t, 30*time.Second, cfg.Auth.CacheTTL)
	assert.Equal(t, "/auth", cfg.Auth.RemotePath)
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "redis:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, "tableapi", cfg.NATS.Prefix)
}

func TestServerConfig_Validate(t *testing.T) {
	cfg, err := LoadServerConfig(t.TempDir(), "config")
	require.Error(t, err)
	require.NotNil(t, cfg)
	assert.Contains(t, err.Error(), "database.dsn")
	assert.Contains(t, err.Error(), "auth.jwt_secret")

	t.Setenv("TABLEAPI_DATABASE_DSN", "postgres://localhost/tables")
	t.Setenv("TABLEAPI_AUTH_REMOTE_URL", "http://auth:8080")
	cfg, err = LoadServerConfig(t.TempDir(), "config")
	require.NoError(t, err)
	assert.Equal(t, "http://auth:8080", cfg.Auth.RemoteURL)
}
