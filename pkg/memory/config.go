package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Supported storage providers.
const (
	ProviderSQLite   = "sqlite"
	ProviderPostgres = "postgres"
	ProviderMySQL    = "mysql"
)

// Config contains the complete configuration for a TeachMem client.
//
// Example:
//
//	config := &memory.Config{
//	    Provider: memory.ProviderSQLite,
//	    SQLite: memory.SQLiteConfig{
//	        Path: "./teachmem.db",
//	    },
//	}
type Config struct {
	// Provider is the storage backend name (sqlite, postgres, mysql).
	Provider string `json:"provider"`

	// SQLite contains SQLite settings (used when Provider is "sqlite").
	SQLite SQLiteConfig `json:"sqlite,omitempty"`

	// Postgres contains PostgreSQL settings (used when Provider is "postgres").
	Postgres PostgresConfig `json:"postgres,omitempty"`

	// MySQL contains MySQL settings (used when Provider is "mysql").
	MySQL MySQLConfig `json:"mysql,omitempty"`

	// MaxConcurrent caps concurrent storage operations (default 10).
	MaxConcurrent int `json:"max_concurrent,omitempty"`

	// CacheTTL is the time-to-live for cached query results
	// (default 5 minutes).
	CacheTTL time.Duration `json:"-"`

	// CacheTTLMillis mirrors CacheTTL for JSON configuration files.
	CacheTTLMillis int `json:"cache_ttl_ms,omitempty"`

	// LLM contains the optional language-model collaborator settings,
	// used by context composition helpers.
	LLM LLMConfig `json:"llm,omitempty"`
}

// SQLiteConfig contains settings for the SQLite backend.
type SQLiteConfig struct {
	// Path is the path to the database file.
	Path string `json:"path"`

	// TableName is the table to use (default: "memories").
	TableName string `json:"table_name,omitempty"`
}

// PostgresConfig contains settings for the PostgreSQL backend.
type PostgresConfig struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	User      string `json:"user"`
	Password  string `json:"password"`
	Database  string `json:"database"`
	TableName string `json:"table_name,omitempty"`
	SSLMode   string `json:"ssl_mode,omitempty"`
}

// MySQLConfig contains settings for the MySQL backend.
type MySQLConfig struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	User      string `json:"user"`
	Password  string `json:"password"`
	Database  string `json:"database"`
	TableName string `json:"table_name,omitempty"`
}

// LLMConfig contains configuration for the language-model collaborator.
//
// The memory engine itself never calls a model; this configuration is
// consumed by callers that feed composed context into a chat completion.
type LLMConfig struct {
	// Provider is the LLM provider name (currently "openai").
	Provider string `json:"provider"`

	// APIKey is the API key for the provider.
	APIKey string `json:"api_key"`

	// Model is the model name to use (e.g., "gpt-4").
	Model string `json:"model"`

	// BaseURL overrides the provider's default endpoint (optional).
	BaseURL string `json:"base_url,omitempty"`
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//
// Supported environment variables:
//   - DATABASE_PROVIDER (sqlite, postgres, mysql)
//   - SQLITE_PATH, SQLITE_TABLE
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD,
//     POSTGRES_DATABASE, POSTGRES_TABLE, POSTGRES_SSLMODE
//   - MYSQL_HOST, MYSQL_PORT, MYSQL_USER, MYSQL_PASSWORD,
//     MYSQL_DATABASE, MYSQL_TABLE
//   - MEMORY_MAX_CONCURRENT, MEMORY_CACHE_TTL_MS
//   - LLM_PROVIDER, LLM_API_KEY, LLM_MODEL, LLM_BASE_URL
//
// Returns a Config instance, or an error if loading fails.
//
// Example:
//
//	config, err := memory.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnv() (*Config, error) {
	// Use FindEnvFile to locate .env file (supports upward search)
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	config := &Config{
		Provider: getEnvOrDefault("DATABASE_PROVIDER", ProviderSQLite),
	}

	switch config.Provider {
	case ProviderSQLite:
		config.SQLite = SQLiteConfig{
			Path:      getEnvOrDefault("SQLITE_PATH", "./teachmem.db"),
			TableName: getEnvOrDefault("SQLITE_TABLE", "memories"),
		}
	case ProviderPostgres:
		port, _ := strconv.Atoi(getEnvOrDefault("POSTGRES_PORT", "5432"))
		config.Postgres = PostgresConfig{
			Host:      getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:      port,
			User:      getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password:  os.Getenv("POSTGRES_PASSWORD"),
			Database:  getEnvOrDefault("POSTGRES_DATABASE", "teachmem"),
			TableName: getEnvOrDefault("POSTGRES_TABLE", "memories"),
			SSLMode:   getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		}
	case ProviderMySQL:
		port, _ := strconv.Atoi(getEnvOrDefault("MYSQL_PORT", "3306"))
		config.MySQL = MySQLConfig{
			Host:      getEnvOrDefault("MYSQL_HOST", "localhost"),
			Port:      port,
			User:      getEnvOrDefault("MYSQL_USER", "root"),
			Password:  os.Getenv("MYSQL_PASSWORD"),
			Database:  getEnvOrDefault("MYSQL_DATABASE", "teachmem"),
			TableName: getEnvOrDefault("MYSQL_TABLE", "memories"),
		}
	}

	maxConcurrent, _ := strconv.Atoi(getEnvOrDefault("MEMORY_MAX_CONCURRENT", "10"))
	config.MaxConcurrent = maxConcurrent

	ttlMillis, _ := strconv.Atoi(getEnvOrDefault("MEMORY_CACHE_TTL_MS", "300000"))
	config.CacheTTL = time.Duration(ttlMillis) * time.Millisecond

	config.LLM = LLMConfig{
		Provider: getEnvOrDefault("LLM_PROVIDER", "openai"),
		APIKey:   os.Getenv("LLM_API_KEY"),
		Model:    getEnvOrDefault("LLM_MODEL", "gpt-4"),
		BaseURL:  os.Getenv("LLM_BASE_URL"),
	}

	return config, nil
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
//
// Parameters:
//   - envPath: Path to the .env file
//
// Returns a Config instance, or an error if loading fails.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, newError("LoadConfigFromEnvFile", fmt.Errorf("failed to load .env file: %w", err))
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromJSON loads configuration from a JSON file.
//
// Parameters:
//   - path: Path to the JSON configuration file
//
// Returns a Config instance, or an error if loading or parsing fails.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError("LoadConfigFromJSON", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, newError("LoadConfigFromJSON", err)
	}

	if config.CacheTTLMillis > 0 {
		config.CacheTTL = time.Duration(config.CacheTTLMillis) * time.Millisecond
	}

	return &config, nil
}

// Validate validates the configuration.
//
// Checks that a storage provider is set and that the selected provider's
// required fields are present.
//
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("%w: sqlite path is required", ErrInvalidConfig)
		}
	case ProviderPostgres:
		if c.Postgres.Database == "" {
			return fmt.Errorf("%w: postgres database is required", ErrInvalidConfig)
		}
	case ProviderMySQL:
		if c.MySQL.Database == "" {
			return fmt.Errorf("%w: mysql database is required", ErrInvalidConfig)
		}
	case "":
		return fmt.Errorf("%w: storage provider is required", ErrInvalidConfig)
	default:
		return fmt.Errorf("%w: unknown storage provider: %s", ErrInvalidConfig, c.Provider)
	}

	if c.MaxConcurrent < 0 {
		return fmt.Errorf("%w: max concurrent must be non-negative", ErrInvalidConfig)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("%w: cache TTL must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
//
// Returns:
//   - path: Path to the found file (empty if not found)
//   - found: True if a file was found, false otherwise
func FindEnvFile() (string, bool) {
	// First check the current directory
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	// Check project root directory (search upward)
	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
