package config

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the loaded configuration. Any error is fatal at startup.
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	add := func(field, format string, args ...any) {
		errors = append(errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Chunking
	if c.Chunking.ChunkSize < 1 {
		add("chunking.chunk_size", "chunk_size must be positive")
	}
	if c.Chunking.ChunkOverlap < 0 {
		add("chunking.chunk_overlap", "chunk_overlap must not be negative")
	}
	if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		add("chunking.chunk_overlap", "chunk_overlap (%d) must be less than chunk_size (%d)",
			c.Chunking.ChunkOverlap, c.Chunking.ChunkSize)
	}
	if c.Chunking.LookAhead < 0 {
		add("chunking.look_ahead", "look_ahead must not be negative")
	}

	// Retrieval
	if c.Retrieval.CoarseFloor < 0 || c.Retrieval.CoarseFloor > 1 {
		add("retrieval.coarse_floor", "coarse_floor must be between 0 and 1")
	}
	if c.Retrieval.OverlapBonus < 0 || c.Retrieval.OverlapBonus > 1 {
		add("retrieval.overlap_bonus", "overlap_bonus must be between 0 and 1")
	}
	if c.Retrieval.OverFetchFactor < 1 {
		add("retrieval.over_fetch_factor", "over_fetch_factor must be at least 1")
	}
	if c.Retrieval.DefaultTopK < 1 {
		add("retrieval.default_top_k", "default_top_k must be at least 1")
	}
	if c.Retrieval.DefaultMinScore < 0 || c.Retrieval.DefaultMinScore > 1 {
		add("retrieval.default_min_score", "default_min_score must be between 0 and 1")
	}

	// Embedding
	switch c.Embedding.Backend {
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			add("openai.api_key", "OPENAI_API_KEY is required for the openai embedding backend")
		}
	case BackendOllama:
		if c.Embedding.BaseURL == "" {
			add("embedding.base_url", "Ollama base URL is required")
		}
	default:
		add("embedding.backend", "unknown backend %q (want %s or %s)", c.Embedding.Backend, BackendOpenAI, BackendOllama)
	}
	if c.Embedding.Dimension < 1 {
		add("embedding.dimension", "dimension must be positive")
	}
	if c.Embedding.RequestsPerSecond < 0 {
		add("embedding.requests_per_second", "requests_per_second must not be negative")
	}

	// Vector store
	switch c.VectorStore.Backend {
	case StoreQdrant:
		if c.VectorStore.Host == "" {
			add("vector_store.host", "host is required for qdrant")
		}
		if c.VectorStore.Port < 1 || c.VectorStore.Port > 65535 {
			add("vector_store.port", "port must be between 1 and 65535")
		}
	case StorePGVector:
		if c.Database.URL == "" {
			add("database.url", "DATABASE_URL is required for the pgvector store")
		}
	case StoreMemory:
	default:
		add("vector_store.backend", "unknown backend %q (want %s)", c.VectorStore.Backend,
			strings.Join([]string{StoreQdrant, StorePGVector, StoreMemory}, ", "))
	}
	if c.VectorStore.Collection == "" {
		add("vector_store.collection", "collection is required")
	}
	if c.VectorStore.BatchSize < 1 {
		add("vector_store.batch_size", "batch_size must be positive")
	}
	if c.VectorStore.PreviewChars < 1 {
		add("vector_store.preview_chars", "preview_chars must be positive")
	}

	// Answer
	if c.Answer.Temperature < 0 || c.Answer.Temperature > 2 {
		add("answer.temperature", "temperature must be between 0 and 2")
	}
	if c.Answer.MaxTokens < 1 {
		add("answer.max_tokens", "max_tokens must be positive")
	}

	// Log
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level", "level must be one of debug, info, warn, error")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		add("log.format", "format must be text or json")
	}

	return errors
}
