package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, 500, cfg.Chunker.MaxSize)
	assert.Equal(t, 50, cfg.Chunker.Overlap)
	assert.Equal(t, 10, cfg.RAG.TopK)
	assert.Equal(t, 0.75, cfg.RAG.Lambda)
	assert.Equal(t, 16, cfg.Worker.QueueSize)
	assert.Equal(t, "memory", cfg.Index.Backend)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[llm]
provider = "openai"
base_url = "https://api.example.com/v1"
model = "file-model"

[chunker]
max_size = 800
overlap = 80

[index]
backend = "qdrant"

[index.qdrant]
url = "http://qdrant:6333"
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LLM_MODEL", "env-model")
	t.Setenv("RAG_LAMBDA", "0.5")
	t.Setenv("LLM_PULL", "false")
	t.Setenv("WORKER_QUEUE_SIZE", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "env-model", cfg.LLM.Model)
	assert.Equal(t, 800, cfg.Chunker.MaxSize)
	assert.Equal(t, 0.5, cfg.RAG.Lambda)
	assert.False(t, cfg.LLM.Pull)
	assert.Equal(t, 16, cfg.Worker.QueueSize, "unparsable env keeps the previous value")
	assert.Equal(t, "http://qdrant:6333", cfg.Index.Qdrant.URL)
	assert.Equal(t, "docqa", cfg.Index.Qdrant.Collection)
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[llm\nprovider="), 0o600))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"overlap too large":    func(c *Config) { c.Chunker.Overlap = c.Chunker.MaxSize },
		"zero size":            func(c *Config) { c.Chunker.MaxSize = 0 },
		"unknown engine":       func(c *Config) { c.LLM.Provider = "webllm" },
		"unknown embedder":     func(c *Config) { c.Embedding.Provider = "anthropic" },
		"unknown index":        func(c *Config) { c.Index.Backend = "faiss" },
		"qdrant without url":   func(c *Config) { c.Index.Backend = "qdrant" },
		"lambda out of range":  func(c *Config) { c.RAG.Lambda = 1.5 },
		"single context turn":  func(c *Config) { c.LLM.MaxContextMessage = 1 },
		"negative context cap": func(c *Config) { c.LLM.MaxContextMessage = -3 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := defaultConfig()
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), errInvalidValue)
		})
	}
	assert.NoError(t, defaultConfig().Validate())

	for _, limit := range []int{0, 2} {
		cfg := defaultConfig()
		cfg.LLM.MaxContextMessage = limit
		assert.NoError(t, cfg.Validate(), "max_context_message %d", limit)
	}
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", MaskSecret("short"))
	assert.Equal(t, "sk-a***wxyz", MaskSecret("sk-abcdwxyz"))
}
