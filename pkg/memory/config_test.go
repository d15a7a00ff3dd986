package memory_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightclass/teachmem/pkg/memory"
)

func TestConfig_Validate(t *testing.T) {
	valid := &memory.Config{
		Provider: memory.ProviderSQLite,
		SQLite:   memory.SQLiteConfig{Path: "./test.db"},
	}
	assert.NoError(t, valid.Validate())

	missing := &memory.Config{Provider: memory.ProviderSQLite}
	assert.ErrorIs(t, missing.Validate(), memory.ErrInvalidConfig)

	unknown := &memory.Config{Provider: "cassandra"}
	assert.ErrorIs(t, unknown.Validate(), memory.ErrInvalidConfig)

	empty := &memory.Config{}
	assert.ErrorIs(t, empty.Validate(), memory.ErrInvalidConfig)

	noDatabase := &memory.Config{Provider: memory.ProviderPostgres}
	assert.ErrorIs(t, noDatabase.Validate(), memory.ErrInvalidConfig)
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("DATABASE_PROVIDER", "")
	t.Setenv("SQLITE_PATH", "")
	t.Setenv("MEMORY_MAX_CONCURRENT", "")
	t.Setenv("MEMORY_CACHE_TTL_MS", "")

	config, err := memory.LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, memory.ProviderSQLite, config.Provider)
	assert.Equal(t, "./teachmem.db", config.SQLite.Path)
	assert.Equal(t, "memories", config.SQLite.TableName)
	assert.Equal(t, 10, config.MaxConcurrent)
	assert.Equal(t, 5*time.Minute, config.CacheTTL)
}

func TestLoadConfigFromEnv_Postgres(t *testing.T) {
	t.Setenv("DATABASE_PROVIDER", "postgres")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_PORT", "5433")
	t.Setenv("POSTGRES_USER", "teach")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DATABASE", "memories_db")
	t.Setenv("MEMORY_MAX_CONCURRENT", "4")
	t.Setenv("MEMORY_CACHE_TTL_MS", "60000")

	config, err := memory.LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, memory.ProviderPostgres, config.Provider)
	assert.Equal(t, "db.internal", config.Postgres.Host)
	assert.Equal(t, 5433, config.Postgres.Port)
	assert.Equal(t, "teach", config.Postgres.User)
	assert.Equal(t, "secret", config.Postgres.Password)
	assert.Equal(t, "memories_db", config.Postgres.Database)
	assert.Equal(t, 4, config.MaxConcurrent)
	assert.Equal(t, time.Minute, config.CacheTTL)
}

func TestLoadConfigFromJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"provider": "sqlite",
		"sqlite": {"path": "./teachmem.db", "table_name": "memories"},
		"max_concurrent": 8,
		"cache_ttl_ms": 120000,
		"llm": {"provider": "openai", "model": "gpt-4"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	config, err := memory.LoadConfigFromJSON(path)
	require.NoError(t, err)

	assert.Equal(t, memory.ProviderSQLite, config.Provider)
	assert.Equal(t, "./teachmem.db", config.SQLite.Path)
	assert.Equal(t, 8, config.MaxConcurrent)
	assert.Equal(t, 2*time.Minute, config.CacheTTL)
	assert.Equal(t, "gpt-4", config.LLM.Model)
	assert.NoError(t, config.Validate())
}

func TestLoadConfigFromJSON_Missing(t *testing.T) {
	_, err := memory.LoadConfigFromJSON(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadConfigFromJSON_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := memory.LoadConfigFromJSON(path)
	assert.Error(t, err)
}
