package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TRIAGE_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, "knowledge_base/documents", cfg.Knowledge.DocumentsPath)
	assert.Equal(t, ".txt", cfg.Knowledge.Extension)
	assert.Equal(t, 3, cfg.Knowledge.TopK)
	assert.Equal(t, "memory", cfg.Knowledge.Backend)
	assert.Equal(t, "outputs/report.md", cfg.Output.ReportPath)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "triage.yaml")
	content := `
model:
  provider: anthropic
  name: claude-sonnet-4-5-20250929
  timeout: 30s
knowledge:
  topK: 5
cache:
  enabled: true
  addr: localhost:6379
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("TRIAGE_MODEL_NAME", "claude-3-5-haiku-20241022")
	t.Setenv("TRIAGE_CACHE_EMBEDDING_TTL", "2h")
	t.Setenv("TRIAGE_LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, "claude-3-5-haiku-20241022", cfg.Model.Name)
	assert.Equal(t, 30*time.Second, cfg.Model.Timeout)
	assert.Equal(t, 5, cfg.Knowledge.TopK)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 2*time.Hour, cfg.Cache.EmbeddingTTL)
	assert.True(t, cfg.Logging.JSON)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	cases := map[string]func(*Config){
		"model provider":     func(c *Config) { c.Model.Provider = "llama" },
		"embedding provider": func(c *Config) { c.Embeddings.Provider = "anthropic" },
		"backend":            func(c *Config) { c.Knowledge.Backend = "faiss" },
		"weaviate endpoint":  func(c *Config) { c.Knowledge.Backend = "weaviate" },
		"top k":              func(c *Config) { c.Knowledge.TopK = 0 },
		"report path":        func(c *Config) { c.Output.ReportPath = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := defaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
