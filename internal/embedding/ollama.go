package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/time/rate"

	"github.com/lexai-study/lexai-retrieval/internal/errs"
)

const (
	DefaultOllamaModel     = "nomic-embed-text"
	DefaultOllamaDimension = 768
	DefaultOllamaMaxInput  = 2000
	DefaultOllamaURL       = "http://localhost:11434"
)

// OllamaConfig configures the local Ollama embedder.
type OllamaConfig struct {
	BaseURL           string
	Model             string
	Dimension         int
	BatchSize         int
	MaxInputChars     int
	RequestsPerSecond float64
}

// embeddingCreator is the part of *ollama.LLM the embedder uses.
type embeddingCreator interface {
	CreateEmbedding(ctx context.Context, inputTexts []string) ([][]float32, error)
}

// OllamaEmbedder generates embeddings with a local Ollama server through langchaingo.
type OllamaEmbedder struct {
	llm     embeddingCreator
	cfg     OllamaConfig
	limiter *rate.Limiter
}

// NewOllamaEmbedder connects to the Ollama server described by cfg.
func NewOllamaEmbedder(cfg OllamaConfig) (*OllamaEmbedder, error) {
	cfg = cfg.withDefaults()

	llm, err := ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(cfg.BaseURL),
	)
	if err != nil {
		return nil, errs.E(errs.Configuration, "new ollama embedder", err)
	}
	return newOllamaEmbedder(llm, cfg), nil
}

func newOllamaEmbedder(llm embeddingCreator, cfg OllamaConfig) *OllamaEmbedder {
	cfg = cfg.withDefaults()
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &OllamaEmbedder{llm: llm, cfg: cfg, limiter: rate.NewLimiter(limit, 1)}
}

func (c OllamaConfig) withDefaults() OllamaConfig {
	if c.BaseURL == "" {
		c.BaseURL = DefaultOllamaURL
	}
	if c.Model == "" {
		c.Model = DefaultOllamaModel
	}
	if c.Dimension <= 0 {
		c.Dimension = DefaultOllamaDimension
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.MaxInputChars <= 0 {
		c.MaxInputChars = DefaultOllamaMaxInput
	}
	return c
}

func (e *OllamaEmbedder) Dimension() int { return e.cfg.Dimension }

func (e *OllamaEmbedder) Name() string { return "ollama/" + e.cfg.Model }

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = Preprocess(t, e.cfg.MaxInputChars)
		if inputs[i] == "" {
			return nil, errs.Errorf(errs.Invalid, "embed", "input %d is empty", i)
		}
	}

	all := make([][]float32, 0, len(inputs))
	for i := 0; i < len(inputs); i += e.cfg.BatchSize {
		end := min(i+e.cfg.BatchSize, len(inputs))
		batch := inputs[i:end]

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, errs.E(errs.Embedding, "embed", err)
		}
		vectors, err := e.llm.CreateEmbedding(ctx, batch)
		if err != nil {
			return nil, errs.E(errs.Embedding, "embed", fmt.Errorf("batch %d-%d: %w", i, end, err))
		}
		if err := checkVectors(vectors, len(batch), e.cfg.Dimension); err != nil {
			return nil, errs.E(errs.Embedding, "embed", fmt.Errorf("batch %d-%d: %w", i, end, err))
		}
		all = append(all, vectors...)
	}
	return all, nil
}
