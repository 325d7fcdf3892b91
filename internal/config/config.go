// Package config loads the service configuration from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/lexai-study/lexai-retrieval/internal/answer"
	"github.com/lexai-study/lexai-retrieval/internal/chunking"
	"github.com/lexai-study/lexai-retrieval/internal/embedding"
	"github.com/lexai-study/lexai-retrieval/internal/retrieval"
	"github.com/lexai-study/lexai-retrieval/internal/storage"
)

// Embedding backends.
const (
	BackendOpenAI = "openai"
	BackendOllama = "ollama"
)

// Vector store backends.
const (
	StoreQdrant   = "qdrant"
	StorePGVector = "pgvector"
	StoreMemory   = "memory"
)

type Config struct {
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Database    DatabaseConfig    `yaml:"database"`
	Answer      AnswerConfig      `yaml:"answer"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
}

type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	LookAhead    int `yaml:"look_ahead"`
}

type RetrievalConfig struct {
	CoarseFloor     float64 `yaml:"coarse_floor"`
	OverlapBonus    float64 `yaml:"overlap_bonus"`
	OverFetchFactor int     `yaml:"over_fetch_factor"`
	ShortQueryWords int     `yaml:"short_query_words"`
	DefaultTopK     int     `yaml:"default_top_k"`
	DefaultMinScore float64 `yaml:"default_min_score"`
}

type EmbeddingConfig struct {
	Backend           string  `yaml:"backend"`
	Model             string  `yaml:"model"`
	Dimension         int     `yaml:"dimension"`
	BatchSize         int     `yaml:"batch_size"`
	MaxInputChars     int     `yaml:"max_input_chars"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	// BaseURL is the Ollama server; unused by the openai backend.
	BaseURL string `yaml:"base_url"`
}

// OpenAIConfig is shared by the openai embedder and answer generation.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type VectorStoreConfig struct {
	Backend      string `yaml:"backend"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	APIKey       string `yaml:"api_key"`
	UseTLS       bool   `yaml:"use_tls"`
	Collection   string `yaml:"collection"`
	BatchSize    int    `yaml:"batch_size"`
	PreviewChars int    `yaml:"preview_chars"`
	// Capacity bounds the memory backend; 0 is unbounded.
	Capacity int `yaml:"capacity"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type AnswerConfig struct {
	Model            string  `yaml:"model"`
	Temperature      float64 `yaml:"temperature"`
	MaxTokens        int     `yaml:"max_tokens"`
	MaxContextTokens int     `yaml:"max_context_tokens"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	// HTTP serves MCP over streamable HTTP instead of stdio.
	HTTP bool `yaml:"http"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the configuration at path. With an empty path the default
// locations are tried in order and, if none exists, defaults are used.
// Environment variables override file values.
func Load(path string) (*Config, error) {
	if path == "" {
		locations := []string{
			"lexai.yaml",
			"lexai.yml",
			"config.yaml",
			filepath.Join(os.Getenv("HOME"), ".config/lexai/config.yaml"),
			"/etc/lexai/config.yaml",
		}
		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	cfg := newConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
	}

	if err := mergeWithEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

// newConfig presets the tunables for which zero is a valid setting, so an
// explicit 0 in the file is kept. Everything else is filled by applyDefaults.
func newConfig() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			ChunkOverlap: chunking.DefaultChunkOverlap,
		},
		Retrieval: RetrievalConfig{
			CoarseFloor:     retrieval.DefaultCoarseFloor,
			DefaultMinScore: retrieval.DefaultMinScore,
		},
	}
}

func applyDefaults(c *Config) {
	if c.Chunking.ChunkSize == 0 {
		c.Chunking.ChunkSize = chunking.DefaultChunkSize
	}
	if c.Chunking.LookAhead == 0 {
		c.Chunking.LookAhead = chunking.DefaultLookAhead
	}

	if c.Retrieval.OverlapBonus == 0 {
		c.Retrieval.OverlapBonus = retrieval.DefaultOverlapBonus
	}
	if c.Retrieval.OverFetchFactor == 0 {
		c.Retrieval.OverFetchFactor = retrieval.DefaultOverFetchFactor
	}
	if c.Retrieval.ShortQueryWords == 0 {
		c.Retrieval.ShortQueryWords = retrieval.DefaultShortQueryWords
	}
	if c.Retrieval.DefaultTopK == 0 {
		c.Retrieval.DefaultTopK = retrieval.DefaultTopK
	}

	if c.Embedding.Backend == "" {
		c.Embedding.Backend = BackendOpenAI
	}
	switch c.Embedding.Backend {
	case BackendOllama:
		if c.Embedding.Model == "" {
			c.Embedding.Model = embedding.DefaultOllamaModel
		}
		if c.Embedding.Dimension == 0 {
			c.Embedding.Dimension = embedding.DefaultOllamaDimension
		}
		if c.Embedding.MaxInputChars == 0 {
			c.Embedding.MaxInputChars = embedding.DefaultOllamaMaxInput
		}
		if c.Embedding.BaseURL == "" {
			c.Embedding.BaseURL = embedding.DefaultOllamaURL
		}
	default:
		if c.Embedding.Model == "" {
			c.Embedding.Model = embedding.DefaultOpenAIModel
		}
		if c.Embedding.Dimension == 0 {
			c.Embedding.Dimension = embedding.DefaultOpenAIDimension
		}
		if c.Embedding.MaxInputChars == 0 {
			c.Embedding.MaxInputChars = embedding.DefaultOpenAIMaxInput
		}
		if c.Embedding.BatchSize == 0 {
			c.Embedding.BatchSize = embedding.DefaultBatchSize
		}
	}

	if c.VectorStore.Backend == "" {
		c.VectorStore.Backend = StoreQdrant
	}
	if c.VectorStore.Host == "" {
		c.VectorStore.Host = "localhost"
	}
	if c.VectorStore.Port == 0 {
		c.VectorStore.Port = 6334
	}
	if c.VectorStore.BatchSize == 0 {
		c.VectorStore.BatchSize = storage.DefaultBatchSize
	}
	if c.VectorStore.PreviewChars == 0 {
		c.VectorStore.PreviewChars = storage.PreviewChars
	}
	if c.VectorStore.Collection == "" {
		c.VectorStore.Collection = fmt.Sprintf("lexai-%s-%d", c.Embedding.Backend, c.Embedding.Dimension)
	}

	if c.Answer.Model == "" {
		c.Answer.Model = answer.DefaultModel
	}
	if c.Answer.Temperature == 0 {
		c.Answer.Temperature = answer.DefaultTemperature
	}
	if c.Answer.MaxTokens == 0 {
		c.Answer.MaxTokens = answer.DefaultMaxTokens
	}
	if c.Answer.MaxContextTokens == 0 {
		c.Answer.MaxContextTokens = answer.DefaultMaxContextTokens
	}

	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func mergeWithEnv(c *Config) error {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.OpenAI.APIKey = key
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		c.Embedding.BaseURL = baseURL
	}
	if host := os.Getenv("QDRANT_HOST"); host != "" {
		c.VectorStore.Host = host
	}
	if port := os.Getenv("QDRANT_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid QDRANT_PORT %q: %w", port, err)
		}
		c.VectorStore.Port = p
	}
	if key := os.Getenv("QDRANT_API_KEY"); key != "" {
		c.VectorStore.APIKey = key
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		c.Database.URL = dbURL
	}
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.HTTP = mode == "true"
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	return nil
}

// ChunkerConfig converts the chunking section.
func (c *Config) ChunkerConfig() chunking.Config {
	return chunking.Config{
		ChunkSize:    c.Chunking.ChunkSize,
		ChunkOverlap: c.Chunking.ChunkOverlap,
		LookAhead:    c.Chunking.LookAhead,
	}
}

// RetrieverConfig converts the retrieval section.
func (c *Config) RetrieverConfig() retrieval.Config {
	floor := c.Retrieval.CoarseFloor
	return retrieval.Config{
		CoarseFloor:     &floor,
		OverlapBonus:    c.Retrieval.OverlapBonus,
		OverFetchFactor: c.Retrieval.OverFetchFactor,
		ShortQueryWords: c.Retrieval.ShortQueryWords,
	}
}

// QueryDefaults returns the top_k and min_score used when a caller omits them.
func (c *Config) QueryDefaults() retrieval.Defaults {
	return retrieval.Defaults{
		TopK:     c.Retrieval.DefaultTopK,
		MinScore: c.Retrieval.DefaultMinScore,
	}
}

// GeneratorConfig converts the answer section.
func (c *Config) GeneratorConfig() answer.Config {
	return answer.Config{
		Model:            c.Answer.Model,
		Temperature:      c.Answer.Temperature,
		MaxTokens:        c.Answer.MaxTokens,
		MaxContextTokens: c.Answer.MaxContextTokens,
	}
}
