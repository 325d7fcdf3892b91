// Package app wires the configured components into a running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"

	"github.com/lexai-study/lexai-retrieval/internal/answer"
	"github.com/lexai-study/lexai-retrieval/internal/chunking"
	"github.com/lexai-study/lexai-retrieval/internal/config"
	"github.com/lexai-study/lexai-retrieval/internal/embedding"
	"github.com/lexai-study/lexai-retrieval/internal/errs"
	"github.com/lexai-study/lexai-retrieval/internal/indexer"
	"github.com/lexai-study/lexai-retrieval/internal/library"
	"github.com/lexai-study/lexai-retrieval/internal/records"
	"github.com/lexai-study/lexai-retrieval/internal/retrieval"
	"github.com/lexai-study/lexai-retrieval/internal/storage"
)

// App holds the long-lived components. It is safe for concurrent use.
type App struct {
	Config    *config.Config
	Embedder  embedding.Embedder
	Store     storage.VectorStore
	Records   records.Store
	Retriever *retrieval.Retriever
	Pipeline  *indexer.Pipeline
	Library   *library.Library
	// Generator is nil when no OpenAI key is configured.
	Generator *answer.Generator

	logger *slog.Logger
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Build validates cfg, connects to the backends and prepares the vector index.
// Every failure here is a Configuration error: the process should not start.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "build app"
	if logger == nil {
		logger = slog.Default()
	}

	if problems := cfg.Validate(); len(problems) > 0 {
		msgs := make([]string, len(problems))
		for i, p := range problems {
			msgs[i] = p.Error()
		}
		return nil, errs.Errorf(errs.Configuration, op, "invalid configuration: %s", strings.Join(msgs, "; "))
	}

	var oaClient *openai.Client
	if cfg.OpenAI.APIKey != "" {
		c, err := embedding.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
		if err != nil {
			return nil, err
		}
		oaClient = c
	}

	embedder, err := newEmbedder(cfg, oaClient)
	if err != nil {
		return nil, err
	}

	store, err := newVectorStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	recs, err := newRecordStore(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	chunker, err := chunking.NewChunker(cfg.ChunkerConfig())
	if err != nil {
		_ = store.Close()
		_ = recs.Close()
		return nil, errs.E(errs.Configuration, op, err)
	}

	retriever := retrieval.New(embedder, store, cfg.RetrieverConfig(), logger)
	pipeline := indexer.NewPipeline(chunker, embedder, store, retriever, cfg.VectorStore.PreviewChars, logger)

	a := &App{
		Config:    cfg,
		Embedder:  embedder,
		Store:     store,
		Records:   recs,
		Retriever: retriever,
		Pipeline:  pipeline,
		Library:   library.New(pipeline, recs, logger),
		logger:    logger,
	}
	if oaClient != nil {
		a.Generator = answer.NewGenerator(oaClient, cfg.GeneratorConfig(), logger)
	}

	logger.Info("Service ready",
		"embedder", embedder.Name(),
		"dimension", embedder.Dimension(),
		"vector_store", cfg.VectorStore.Backend,
		"collection", cfg.VectorStore.Collection,
		"chunker", chunker.String(),
	)
	return a, nil
}

func newEmbedder(cfg *config.Config, client *openai.Client) (embedding.Embedder, error) {
	e := cfg.Embedding
	switch e.Backend {
	case config.BackendOllama:
		return embedding.NewOllamaEmbedder(embedding.OllamaConfig{
			BaseURL:           e.BaseURL,
			Model:             e.Model,
			Dimension:         e.Dimension,
			BatchSize:         e.BatchSize,
			MaxInputChars:     e.MaxInputChars,
			RequestsPerSecond: e.RequestsPerSecond,
		})
	default:
		if client == nil {
			return nil, errs.Errorf(errs.Configuration, "new embedder", "OPENAI_API_KEY not set")
		}
		return embedding.NewOpenAIEmbedder(client, embedding.OpenAIConfig{
			Model:             e.Model,
			Dimension:         e.Dimension,
			BatchSize:         e.BatchSize,
			MaxInputChars:     e.MaxInputChars,
			RequestsPerSecond: e.RequestsPerSecond,
		}), nil
	}
}

func newVectorStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.VectorStore, error) {
	const op = "connect vector store"
	vs := cfg.VectorStore
	dim := cfg.Embedding.Dimension

	switch vs.Backend {
	case config.StoreMemory:
		logger.Warn("Using in-memory vector store, vectors are lost on exit")
		return storage.NewMemoryStore(dim, vs.Capacity), nil

	case config.StorePGVector:
		s, err := storage.NewPGVectorStore(ctx, storage.PGVectorConfig{
			ConnString: cfg.Database.URL,
			Table:      strings.ReplaceAll(vs.Collection, "-", "_"),
			Dimension:  dim,
			BatchSize:  vs.BatchSize,
		})
		if err != nil {
			return nil, errs.E(errs.Configuration, op, err)
		}
		if err := s.EnsureSchema(ctx); err != nil {
			_ = s.Close()
			return nil, indexError(op, err)
		}
		return s, nil

	default:
		s, err := storage.NewQdrantStore(ctx, storage.QdrantConfig{
			Host:       vs.Host,
			Port:       vs.Port,
			APIKey:     vs.APIKey,
			UseTLS:     vs.UseTLS,
			Collection: vs.Collection,
			Dimension:  dim,
			BatchSize:  vs.BatchSize,
		})
		if err != nil {
			return nil, errs.E(errs.Configuration, op, err)
		}
		if err := s.EnsureCollection(ctx); err != nil {
			_ = s.Close()
			return nil, indexError(op, err)
		}
		logger.Info("Connected to Qdrant", "host", vs.Host, "port", vs.Port, "collection", s.Collection())
		return s, nil
	}
}

// indexError classifies a failure to prepare the index. A dimension mismatch
// means the embedder and index disagree; anything else is a store failure.
func indexError(op string, err error) error {
	if errors.Is(err, storage.ErrDimensionMismatch) {
		return errs.E(errs.Configuration, op, fmt.Errorf("%w (switching embedding backends needs a distinct collection)", err))
	}
	return errs.E(errs.Store, op, err)
}

func newRecordStore(ctx context.Context, cfg *config.Config) (records.Store, error) {
	if cfg.Database.URL == "" {
		return records.NewMemoryStore(), nil
	}
	s, err := records.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		return nil, errs.E(errs.Configuration, "connect record store", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = s.Close()
		return nil, errs.E(errs.Store, "connect record store", err)
	}
	return s, nil
}

// Ask retrieves sources for q and answers q.Text from them.
func (a *App) Ask(ctx context.Context, q retrieval.Query) (*answer.Answer, error) {
	if a.Generator == nil {
		return nil, errs.Errorf(errs.Configuration, "ask", "answer generation needs OPENAI_API_KEY")
	}
	sources, err := a.Library.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	return a.Generator.Answer(ctx, q.Text, sources)
}

// Query fills zero TopK and nil MinScore from the configured defaults.
func (a *App) Query(text, ownerID, documentID string, topK int, minScore *float64) retrieval.Query {
	return a.Config.QueryDefaults().Query(text, ownerID, documentID, topK, minScore)
}

// Close releases backend connections.
func (a *App) Close() error {
	return errors.Join(a.Store.Close(), a.Records.Close())
}
