package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"golang.org/x/time/rate"

	"github.com/lexai-study/lexai-retrieval/internal/errs"
)

const (
	// DefaultOpenAIModel is the OpenAI model used for generating embeddings.
	DefaultOpenAIModel = "text-embedding-3-small"

	// DefaultOpenAIDimension is the vector dimension for text-embedding-3-small.
	DefaultOpenAIDimension = 1536

	// DefaultOpenAIMaxInput is the per-text character limit applied before sending.
	DefaultOpenAIMaxInput = 8000

	// DefaultBatchSize balances requests-per-minute vs tokens-per-minute rate limits.
	// OpenAI supports up to 2048 texts per batch, but smaller batches reduce TPM pressure.
	DefaultBatchSize = 500
)

// OpenAIConfig configures the OpenAI embedder. Zero values take defaults.
type OpenAIConfig struct {
	Model             string
	Dimension         int
	BatchSize         int
	MaxInputChars     int
	RequestsPerSecond float64 // 0 disables pacing
}

// OpenAIEmbedder generates embeddings with the OpenAI embeddings API.
// It batches requests and retries with exponential backoff on rate limit errors.
type OpenAIEmbedder struct {
	client  *openai.Client
	cfg     OpenAIConfig
	limiter *rate.Limiter
}

// NewOpenAIEmbedder creates an embedder over an existing client.
func NewOpenAIEmbedder(client *openai.Client, cfg OpenAIConfig) *OpenAIEmbedder {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultOpenAIDimension
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = DefaultOpenAIMaxInput
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &OpenAIEmbedder{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (e *OpenAIEmbedder) Dimension() int { return e.cfg.Dimension }

func (e *OpenAIEmbedder) Name() string { return "openai/" + e.cfg.Model }

// Embed generates the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for the given texts, in input order.
// Requests are split into batches of BatchSize; any failing batch fails the call.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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

		vectors, err := e.embedBatchWithRetry(ctx, inputs[i:end])
		if err != nil {
			return nil, errs.E(errs.Embedding, "embed", fmt.Errorf("batch %d-%d: %w", i, end, err))
		}
		all = append(all, vectors...)
	}

	return all, nil
}

// embedBatchWithRetry generates embeddings for a single batch with retry logic.
// Retries with exponential backoff on rate limit errors (HTTP 429).
// Other errors are treated as permanent and fail immediately.
func (e *OpenAIEmbedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: openai.EmbeddingModel(e.cfg.Model),
	}
	// Only the text-embedding-3 family accepts a dimensions parameter.
	if strings.HasPrefix(e.cfg.Model, "text-embedding-3") {
		params.Dimensions = openai.Int(int64(e.cfg.Dimension))
	}

	var embeddings [][]float32

	operation := func() error {
		if err := e.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		resp, err := e.client.Embeddings.New(ctx, params)
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		// Order by the response index, not arrival order.
		out := make([][]float32, len(texts))
		for _, data := range resp.Data {
			if data.Index < 0 || int(data.Index) >= len(out) {
				return backoff.Permanent(fmt.Errorf("response index %d out of range", data.Index))
			}
			out[data.Index] = toFloat32(data.Embedding)
		}
		if err := checkVectors(out, len(texts), e.cfg.Dimension); err != nil {
			return backoff.Permanent(err)
		}

		embeddings = out
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
