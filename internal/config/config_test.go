package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "ENVIRONMENT", "CORS_ORIGINS", "DB_DSN", "STORAGE_BACKEND", "DATA_DIR",
	"GENERATION_PROVIDER", "GENERATION_BASE_URL", "GENERATION_MODEL", "GENERATION_API_TOKEN",
	"REPLICATE_API_TOKEN", "GENERATION_MAX_TOKENS", "GENERATION_TIMEOUT", "EVENTS_BUS",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "RABBIT_URL", "RABBIT_EXCHANGE",
}

// clearEnv blanks every key Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StorageFile, cfg.Storage.Type)
	assert.Equal(t, "./data", cfg.Storage.DataDir)
	assert.Equal(t, "replicate", cfg.Generation.Provider)
	assert.Equal(t, 4000, cfg.Generation.MaxTokens)
	assert.True(t, cfg.IsDev())

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GENERATION_API_TOKEN")
}

func TestLoad_DSNSelectsSQL(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DSN", "postgres://localhost/ide")
	t.Setenv("REPLICATE_API_TOKEN", "r8_token")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, StorageSQL, cfg.Storage.Type)
	assert.Equal(t, "r8_token", cfg.Generation.APIToken)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "ide.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
port = "9000"
environment = "prod"
cors_origins = ["https://ide.example.com"]

[storage]
type = "file"
data_dir = "/var/lib/ide"

[generation]
api_token = "from-file"
model = "owner/model"
timeout = "45s"

[events]
bus = "redis"
redis_addr = "redis:6379"
`), 0o600))

	t.Setenv("GENERATION_API_TOKEN", "from-env")
	t.Setenv("GENERATION_MAX_TOKENS", "2048")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.False(t, cfg.IsDev())
	assert.Equal(t, []string{"https://ide.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, "/var/lib/ide", cfg.Storage.DataDir)
	assert.Equal(t, "from-env", cfg.Generation.APIToken)
	assert.Equal(t, "owner/model", cfg.Generation.Model)
	assert.Equal(t, 2048, cfg.Generation.MaxTokens)
	assert.Equal(t, 45*time.Second, cfg.Generation.Timeout)
	assert.Equal(t, BusRedis, cfg.Events.Bus)
	require.NoError(t, cfg.Validate())
}

func TestLoad_BadNumber(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_DB", "two")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_DB")
}

func TestValidate_StorageUnion(t *testing.T) {
	cfg := Default()
	cfg.Generation.APIToken = "t"
	cfg.Storage = Storage{Type: StorageSQL}
	require.Error(t, cfg.Validate())

	cfg.Storage = Storage{Type: "mongo", DSN: "x"}
	require.Error(t, cfg.Validate())

	cfg.Storage = Storage{Type: StorageFile, DataDir: "./data"}
	require.NoError(t, cfg.Validate())

	cfg.Port = "http"
	require.Error(t, cfg.Validate())
}

func TestValidate_RedisBusNeedsAddr(t *testing.T) {
	cfg := Default()
	cfg.Generation.APIToken = "t"
	cfg.Storage = Storage{Type: StorageFile, DataDir: "./data"}
	cfg.Events.Bus = BusRedis
	cfg.Events.RedisAddr = ""
	require.Error(t, cfg.Validate())
}
