//go:build integration

package indexer

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexai-study/lexai-retrieval/internal/chunking"
	"github.com/lexai-study/lexai-retrieval/internal/embedding"
	"github.com/lexai-study/lexai-retrieval/internal/retrieval"
	"github.com/lexai-study/lexai-retrieval/internal/storage"
)

func TestPipeline_OpenAIQdrant_Integration(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}
	ctx := context.Background()

	store, err := storage.NewQdrantStore(ctx, storage.QdrantConfig{
		Host:       "localhost",
		Port:       6334,
		Collection: "lexai-it-" + uuid.NewString()[:8],
		Dimension:  embedding.DefaultOpenAIDimension,
	})
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}
	defer store.Close()
	require.NoError(t, store.EnsureCollection(ctx))

	client, err := embedding.NewClient(apiKey, "")
	require.NoError(t, err)
	embedder := embedding.NewOpenAIEmbedder(client, embedding.OpenAIConfig{})

	chunker, err := chunking.NewChunker(chunking.DefaultConfig())
	require.NoError(t, err)
	pipeline := NewPipeline(chunker, embedder, store, retrieval.New(embedder, store, retrieval.Config{}, slog.Default()), 0, slog.Default())

	owner, doc := "it-owner", uuid.NewString()
	result, err := pipeline.Ingest(ctx, IngestRequest{
		OwnerID:    owner,
		DocumentID: doc,
		Text:       legalText(30),
		Info:       chunking.DocumentInfo{Filename: "lease.pdf", Title: "Lease"},
	})
	require.NoError(t, err)
	assert.Greater(t, result.ChunkCount, 0, "Should create chunks")

	matches, err := pipeline.Search(ctx, retrieval.Query{Text: "How can the lease be terminated?", OwnerID: owner, TopK: 3, MinScore: 0.3})
	require.NoError(t, err)
	require.NotEmpty(t, matches, "Should find indexed chunks")
	assert.Equal(t, doc, matches[0].DocumentID)

	require.NoError(t, pipeline.Delete(ctx, owner, doc))
	left, err := pipeline.SearchByDocument(ctx, owner, doc)
	require.NoError(t, err)
	assert.Empty(t, left)
}
