package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("OPENROUTER_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "careplan.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "openrouter", cfg.LLM.Provider)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "openai/gpt-oss-20b:free", cfg.LLM.Model)
	assert.InDelta(t, 0.1, cfg.LLM.Temperature, 0.0001)
	assert.Equal(t, 60, cfg.LLM.TimeoutSecs)
	assert.Equal(t, 1, cfg.LLM.MaxAttempts)
	assert.Equal(t, 5000, cfg.Attribution.TokenThreshold)
	assert.Equal(t, 2000, cfg.Attribution.ChunkChars)
	assert.Equal(t, 6000, cfg.Attribution.SingleMaxTokens)
	assert.Equal(t, 3000, cfg.Attribution.ChunkMaxTokens)
	assert.Equal(t, 1, cfg.Attribution.ChunkConcurrency)
	assert.Empty(t, cfg.LLM.APIKey)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/careplan
log:
  level: debug
  format: console
server:
  port: 9090
attribution:
  chunk_concurrency: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Attribution.ChunkConcurrency)
	// Defaults still apply for unset values
	assert.Equal(t, 2000, cfg.Attribution.ChunkChars)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CAREPLAN_STORE_DRIVER", "postgres")
	t.Setenv("CAREPLAN_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadAPIKeyFallback(t *testing.T) {
	chdirTemp(t)
	t.Setenv("OPENROUTER_API_KEY", "sk-or-fallback")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-or-fallback", cfg.LLM.APIKey)

	t.Setenv("CAREPLAN_LLM_API_KEY", "sk-or-primary")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-or-primary", cfg.LLM.APIKey)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CAREPLAN_SERVER_PORT=3000\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("CAREPLAN_SERVER_PORT") }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "careplan.db"
	cfg.Server.Port = 8000
	cfg.LLM.Provider = "openrouter"
	cfg.LLM.TimeoutSecs = 60
	cfg.LLM.Temperature = 0.1
	cfg.Attribution.ChunkChars = 2000
	cfg.Attribution.SingleMaxTokens = 6000
	cfg.Attribution.ChunkMaxTokens = 3000
	cfg.Attribution.ChunkConcurrency = 1
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "serve_ok", mode: "serve"},
		{name: "attribute_ok", mode: "attribute"},
		{name: "migrate_ok", mode: "migrate"},
		{name: "unknown_mode", mode: "nope", wantErr: "unknown mode"},
		{name: "bad_port", mode: "serve", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port must be > 0"},
		{name: "missing_db", mode: "migrate", mutate: func(c *Config) { c.Store.DatabaseURL = "" }, wantErr: "store.database_url is required"},
		{name: "bad_driver", mode: "serve", mutate: func(c *Config) { c.Store.Driver = "mysql" }, wantErr: "store.driver"},
		{name: "attribute_ignores_store", mode: "attribute", mutate: func(c *Config) { c.Store.DatabaseURL = "" }},
		{name: "bad_provider", mode: "attribute", mutate: func(c *Config) { c.LLM.Provider = "x" }, wantErr: "llm.provider"},
		{name: "bad_timeout", mode: "attribute", mutate: func(c *Config) { c.LLM.TimeoutSecs = 0 }, wantErr: "llm.timeout_secs"},
		{name: "bad_concurrency", mode: "attribute", mutate: func(c *Config) { c.Attribution.ChunkConcurrency = 0 }, wantErr: "chunk_concurrency"},
		{name: "token_ceilings", mode: "attribute", mutate: func(c *Config) { c.Attribution.ChunkMaxTokens = 8000 }, wantErr: "single_max_tokens"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
