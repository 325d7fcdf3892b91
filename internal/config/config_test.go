package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENAI_API_KEY", "OLLAMA_BASE_URL", "QDRANT_HOST", "QDRANT_PORT", "QDRANT_API_KEY",
		"DATABASE_URL", "PORT", "SERVER_MODE", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "lexai.yaml")

	configData := `
chunking:
  chunk_size: 800
  chunk_overlap: 100

retrieval:
  coarse_floor: 0.25
  default_top_k: 8

embedding:
  backend: ollama
  model: mxbai-embed-large
  dimension: 1024

vector_store:
  backend: pgvector
  batch_size: 50

database:
  url: "postgres://localhost:5432/lexai"

log:
  format: json
`
	require.NoError(t, os.WriteFile(configPath, []byte(configData), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 800, cfg.Chunking.ChunkSize)
	assert.Equal(t, 100, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, 200, cfg.Chunking.LookAhead)
	assert.Equal(t, 0.25, cfg.Retrieval.CoarseFloor)
	assert.Equal(t, 0.1, cfg.Retrieval.OverlapBonus)
	assert.Equal(t, 8, cfg.Retrieval.DefaultTopK)

	assert.Equal(t, "mxbai-embed-large", cfg.Embedding.Model)
	assert.Equal(t, 1024, cfg.Embedding.Dimension)
	assert.Equal(t, 2000, cfg.Embedding.MaxInputChars)
	assert.Equal(t, "http://localhost:11434", cfg.Embedding.BaseURL)

	assert.Equal(t, StorePGVector, cfg.VectorStore.Backend)
	assert.Equal(t, 50, cfg.VectorStore.BatchSize)
	assert.Equal(t, 1000, cfg.VectorStore.PreviewChars)
	assert.Equal(t, "lexai-ollama-1024", cfg.VectorStore.Collection)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.Empty(t, cfg.Validate())
}

func TestLoad_ExplicitZeroTunables(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configData := `
chunking:
  chunk_overlap: 0
retrieval:
  coarse_floor: 0
  default_min_score: 0
`
	require.NoError(t, os.WriteFile(configPath, []byte(configData), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Zero(t, cfg.Chunking.ChunkOverlap)
	assert.Zero(t, cfg.Retrieval.CoarseFloor)
	assert.Zero(t, cfg.Retrieval.DefaultMinScore)
	assert.Zero(t, *cfg.RetrieverConfig().CoarseFloor)
	assert.Zero(t, cfg.QueryDefaults().MinScore)
	assert.Equal(t, 5, cfg.QueryDefaults().TopK)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1500, cfg.Chunking.ChunkSize)
	assert.Equal(t, 300, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, 0.20, cfg.Retrieval.CoarseFloor)
	assert.Equal(t, 4, cfg.Retrieval.OverFetchFactor)
	assert.Equal(t, 0.5, cfg.Retrieval.DefaultMinScore)
	assert.Equal(t, BackendOpenAI, cfg.Embedding.Backend)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 1536, cfg.Embedding.Dimension)
	assert.Equal(t, 8000, cfg.Embedding.MaxInputChars)
	assert.Equal(t, StoreQdrant, cfg.VectorStore.Backend)
	assert.Equal(t, "localhost", cfg.VectorStore.Host)
	assert.Equal(t, 6334, cfg.VectorStore.Port)
	assert.Equal(t, 100, cfg.VectorStore.BatchSize)
	assert.Equal(t, "lexai-openai-1536", cfg.VectorStore.Collection)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.False(t, cfg.Server.HTTP)

	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "openai.api_key", errs[0].Field)
}

func TestLoad_DefaultLocation(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lexai.yaml"), []byte("chunking:\n  chunk_size: 900\n"), 0644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 900, cfg.Chunking.ChunkSize)
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("QDRANT_HOST", "qdrant.internal")
	t.Setenv("QDRANT_PORT", "7334")
	t.Setenv("QDRANT_API_KEY", "qk")
	t.Setenv("DATABASE_URL", "postgres://db/lexai")
	t.Setenv("PORT", "9090")
	t.Setenv("SERVER_MODE", "true")
	t.Setenv("LOG_LEVEL", "debug")

	configPath := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("vector_store:\n  host: ignored\n"), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "qdrant.internal", cfg.VectorStore.Host)
	assert.Equal(t, 7334, cfg.VectorStore.Port)
	assert.Equal(t, "qk", cfg.VectorStore.APIKey)
	assert.Equal(t, "postgres://db/lexai", cfg.Database.URL)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.Server.HTTP)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Empty(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("chunking: [1, 2"), 0644))
	_, err = Load(bad)
	assert.Error(t, err)

	t.Setenv("QDRANT_PORT", "not-a-port")
	_, err = Load("")
	assert.ErrorContains(t, err, "QDRANT_PORT")
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"overlap equals size", func(c *Config) { c.Chunking.ChunkOverlap = c.Chunking.ChunkSize }, "chunking.chunk_overlap"},
		{"unknown embedding backend", func(c *Config) { c.Embedding.Backend = "cohere" }, "embedding.backend"},
		{"pgvector without database", func(c *Config) { c.VectorStore.Backend = StorePGVector }, "database.url"},
		{"unknown store", func(c *Config) { c.VectorStore.Backend = "pinecone" }, "vector_store.backend"},
		{"min score above one", func(c *Config) { c.Retrieval.DefaultMinScore = 1.5 }, "retrieval.default_min_score"},
		{"bad port", func(c *Config) { c.VectorStore.Port = 70000 }, "vector_store.port"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join("testdata", "empty.yaml"))
			require.NoError(t, err)
			tt.mutate(cfg)

			errs := cfg.Validate()
			require.Len(t, errs, 1)
			assert.Equal(t, tt.field, errs[0].Field)
			assert.Contains(t, errs[0].Error(), tt.field+": ")
		})
	}
}

func TestConversions(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join("testdata", "empty.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 1500, cfg.ChunkerConfig().ChunkSize)
	assert.Equal(t, 0.20, *cfg.RetrieverConfig().CoarseFloor)
	assert.Equal(t, "gpt-4o-mini", cfg.GeneratorConfig().Model)
}
