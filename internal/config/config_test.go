package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "env: production\n"))
	require.NoError(t, err)

	assert.Equal(t, 2333, cfg.Port)
	assert.False(t, cfg.IsDev())
	assert.Equal(t, GenerationModeEnriched, cfg.Generation.Mode)
	assert.Equal(t, 800, cfg.Generation.MaxLength)
	assert.Equal(t, 5, cfg.Generation.TopK)
	assert.Equal(t, 2, cfg.Generation.SnippetsPerTag)
	assert.Equal(t, "auto", cfg.ObjectStore.Region)
	assert.Contains(t, cfg.DSN, "tcp(127.0.0.1:3306)/contentgen")
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
port: 8080
env: Production
allowed_origins: [" example.com ", ""]
object_store:
  endpoint: https://store.example.com/
  bucket: snippets
generation:
  mode: Simple
  max_length: 600
inference:
  providers:
    - id: main
      type: openrouter
      api_key: sk-test
      default_model: some/model
      enabled: true
  generation_model:
    provider_id: main
    model: other/model
`))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.IsDev())
	assert.Equal(t, []string{"example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, "https://store.example.com", cfg.ObjectStore.Endpoint)
	assert.Equal(t, GenerationModeSimple, cfg.Generation.Mode)
	assert.Equal(t, 600, cfg.Generation.MaxLength)

	assignment := cfg.Inference.AssignmentFor("generation")
	require.NotNil(t, assignment)
	assert.Equal(t, "main", assignment.ProviderID)
	assert.Equal(t, "other/model", assignment.Model)
	assert.Nil(t, cfg.Inference.AssignmentFor("summary"))
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(writeConfig(t, "prot: 8080\n"))
	require.Error(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := Load(writeConfig(t, "port: 99999\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "generation:\n  mode: fancy\n"))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}

func TestDSNValueOverride(t *testing.T) {
	c := DatabaseConfig{DSN: "user:pw@tcp(db:3306)/name"}
	assert.Equal(t, "user:pw@tcp(db:3306)/name", c.DSNValue())
}

func TestRedisURLValue(t *testing.T) {
	assert.Equal(t, "redis://10.0.0.1:6379", RedisConfig{URL: "10.0.0.1:6379"}.URLValue())
	assert.Equal(t, "rediss://cache:6380/1", RedisConfig{Host: "cache", Port: 6380, DB: 1, TLS: true}.URLValue())
}
