package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/lexai-study/lexai-retrieval/internal/chunking"
	"github.com/lexai-study/lexai-retrieval/internal/embedding"
	"github.com/lexai-study/lexai-retrieval/internal/errs"
	"github.com/lexai-study/lexai-retrieval/internal/retrieval"
	"github.com/lexai-study/lexai-retrieval/internal/storage"
)

// IngestRequest is one document to index.
type IngestRequest struct {
	OwnerID    string
	DocumentID string
	Text       string // Raw extracted text; cleaned before chunking
	Info       chunking.DocumentInfo
	Salt       int64 // Vector id salt; 0 means the current unix time
}

// IngestResult contains statistics about an ingestion.
type IngestResult struct {
	DocumentID     string
	ChunkCount     int
	CharacterCount int
	Duration       time.Duration
}

// Pipeline composes cleaning, chunking, embedding and vector storage for
// ingestion, and the retriever for queries. It keeps no per-request state.
type Pipeline struct {
	chunker      *chunking.Chunker
	embedder     embedding.Embedder
	store        storage.VectorStore
	retriever    *retrieval.Retriever
	previewChars int
	logger       *slog.Logger
	now          func() time.Time
}

// NewPipeline creates a new pipeline with the given components.
// previewChars <= 0 uses storage.PreviewChars.
func NewPipeline(
	chunker *chunking.Chunker,
	embedder embedding.Embedder,
	store storage.VectorStore,
	retriever *retrieval.Retriever,
	previewChars int,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if previewChars <= 0 {
		previewChars = storage.PreviewChars
	}
	return &Pipeline{
		chunker:      chunker,
		embedder:     embedder,
		store:        store,
		retriever:    retriever,
		previewChars: previewChars,
		logger:       logger,
		now:          time.Now,
	}
}

// Ingest cleans, chunks, embeds and upserts one document. It does not retry
// and does not clean up: if the upsert fails part way, the caller issues
// Delete for the document.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	const op = "ingest"

	if req.OwnerID == "" || req.DocumentID == "" {
		return nil, errs.Errorf(errs.Invalid, op, "owner id and document id are required")
	}

	start := p.now()
	p.logger.Info("Starting ingestion", "document_id", req.DocumentID, "filename", req.Info.Filename)

	text := chunking.Clean(req.Text)
	chunks := p.chunker.ChunkText(text, req.Info)
	if len(chunks) == 0 {
		return nil, errs.Errorf(errs.Extraction, op, "document %s has no text to index", req.DocumentID)
	}
	p.logger.Debug("Chunked document", "document_id", req.DocumentID, "chunks", len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, errs.E(errs.Embedding, op, fmt.Errorf("document %s: %w", req.DocumentID, err))
	}
	if len(embeddings) != len(chunks) {
		return nil, errs.Errorf(errs.Embedding, op, "got %d embeddings for %d chunks", len(embeddings), len(chunks))
	}

	salt := req.Salt
	if salt == 0 {
		salt = start.Unix()
	}

	vectors := make([]storage.EmbeddedVector, len(chunks))
	for i, c := range chunks {
		vectors[i] = storage.EmbeddedVector{
			ID:     storage.VectorID(req.OwnerID, req.DocumentID, req.Info.Filename, c.ChunkID, salt),
			Values: embeddings[i],
			Metadata: storage.Metadata{
				OwnerID:    req.OwnerID,
				DocumentID: req.DocumentID,
				ChunkID:    c.ChunkID,
				Text:       storage.Preview(c.Text, p.previewChars),
				Filename:   c.Filename,
				Title:      c.Title,
				Author:     c.Author,
				Length:     c.Len(),
				StartChar:  c.StartChar,
				EndChar:    c.EndChar,
			},
		}
	}

	if err := p.store.Upsert(ctx, vectors); err != nil {
		p.logger.Error("Vector upsert failed", "document_id", req.DocumentID, "error", err)
		return nil, errs.E(errs.Store, op, fmt.Errorf("document %s: %w", req.DocumentID, err))
	}

	result := &IngestResult{
		DocumentID:     req.DocumentID,
		ChunkCount:     len(chunks),
		CharacterCount: utf8.RuneCountInString(text),
		Duration:       p.now().Sub(start),
	}
	p.logger.Info("Ingestion complete",
		"document_id", req.DocumentID,
		"chunks", result.ChunkCount,
		"characters", result.CharacterCount,
		"duration", result.Duration,
	)
	return result, nil
}

// Delete removes every vector of the owner's document.
func (p *Pipeline) Delete(ctx context.Context, ownerID, documentID string) error {
	const op = "delete"

	if ownerID == "" || documentID == "" {
		return errs.Errorf(errs.Invalid, op, "owner id and document id are required")
	}
	if err := p.store.Delete(ctx, storage.Filter{OwnerID: ownerID, DocumentID: documentID}); err != nil {
		p.logger.Error("Vector delete failed", "document_id", documentID, "error", err)
		return errs.E(errs.Store, op, fmt.Errorf("document %s: %w", documentID, err))
	}
	p.logger.Info("Deleted document vectors", "document_id", documentID)
	return nil
}

// SearchByDocument returns every stored chunk of the owner's document, unordered.
func (p *Pipeline) SearchByDocument(ctx context.Context, ownerID, documentID string) ([]storage.Match, error) {
	const op = "search by document"

	if ownerID == "" || documentID == "" {
		return nil, errs.Errorf(errs.Invalid, op, "owner id and document id are required")
	}
	matches, err := p.store.List(ctx, storage.Filter{OwnerID: ownerID, DocumentID: documentID})
	if err != nil {
		return nil, errs.E(errs.Store, op, err)
	}
	return matches, nil
}

// Search runs a ranked query through the retriever.
func (p *Pipeline) Search(ctx context.Context, q retrieval.Query) ([]retrieval.Match, error) {
	return p.retriever.Search(ctx, q)
}

// Stats reports vector index diagnostics.
func (p *Pipeline) Stats(ctx context.Context) (*storage.Stats, error) {
	st, err := p.store.Stats(ctx)
	if err != nil {
		return nil, errs.E(errs.Store, "stats", err)
	}
	return st, nil
}
