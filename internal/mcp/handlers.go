package mcp

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lexai-study/lexai-retrieval/internal/errs"
	"github.com/lexai-study/lexai-retrieval/internal/library"
)

// searchDocuments handles search_documents.
// The retriever over-fetches, drops noise below the coarse floor, reranks by
// word overlap and applies min_score, so results arrive ranked and final.
func (s *Server) searchDocuments(ctx context.Context, req *mcp.CallToolRequest, input SearchDocumentsInput) (
	*mcp.CallToolResult, SearchDocumentsOutput, error,
) {
	matches, err := s.cfg.Library.Search(ctx, s.cfg.Defaults.Query(input.Query, input.OwnerID, input.DocumentID, input.TopK, input.MinScore))
	if err != nil {
		return nil, SearchDocumentsOutput{}, fmt.Errorf("search failed: %w", err)
	}

	if len(matches) == 0 {
		return nil, SearchDocumentsOutput{
			Results: []SearchResult{},
			Message: "No matching chunks found. Try broader search terms or a lower min_score.",
		}, nil
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, SearchResult{
			ID:            m.ID,
			DocumentID:    m.DocumentID,
			Filename:      m.Filename,
			Title:         m.Title,
			Author:        m.Author,
			ChunkID:       m.ChunkID,
			Score:         m.Score,
			OriginalScore: m.OriginalScore,
			Overlap:       m.Overlap,
			Text:          m.Text,
		})
	}
	return nil, SearchDocumentsOutput{Results: results}, nil
}

// getDocumentChunks handles get_document_chunks.
func (s *Server) getDocumentChunks(ctx context.Context, req *mcp.CallToolRequest, input GetDocumentChunksInput) (
	*mcp.CallToolResult, GetDocumentChunksOutput, error,
) {
	chunks, err := s.cfg.Library.Chunks(ctx, input.OwnerID, input.DocumentID)
	if err != nil {
		return nil, GetDocumentChunksOutput{}, fmt.Errorf("failed to fetch chunks: %w", err)
	}

	out := GetDocumentChunksOutput{
		DocumentID: input.DocumentID,
		Chunks:     make([]ChunkResult, 0, len(chunks)),
		Count:      len(chunks),
		Found:      len(chunks) > 0,
	}
	for _, c := range chunks {
		out.Chunks = append(out.Chunks, ChunkResult{
			ChunkID:   c.Metadata.ChunkID,
			StartChar: c.Metadata.StartChar,
			EndChar:   c.Metadata.EndChar,
			Text:      c.Metadata.Text,
		})
	}
	if out.Found {
		out.Filename = chunks[0].Metadata.Filename
	}
	return nil, out, nil
}

// deleteDocument handles delete_document.
func (s *Server) deleteDocument(ctx context.Context, req *mcp.CallToolRequest, input DeleteDocumentInput) (
	*mcp.CallToolResult, DeleteDocumentOutput, error,
) {
	if err := s.cfg.Library.Delete(ctx, input.OwnerID, input.DocumentID); err != nil {
		return nil, DeleteDocumentOutput{}, fmt.Errorf("failed to delete document: %w", err)
	}
	s.cfg.Logger.Info("Deleted document via MCP", "document_id", input.DocumentID)
	return nil, DeleteDocumentOutput{DocumentID: input.DocumentID, Deleted: true}, nil
}

// indexStats handles index_stats.
func (s *Server) indexStats(ctx context.Context, req *mcp.CallToolRequest, input IndexStatsInput) (
	*mcp.CallToolResult, IndexStatsOutput, error,
) {
	stats, err := s.cfg.Library.Stats(ctx)
	if err != nil {
		return nil, IndexStatsOutput{}, fmt.Errorf("failed to read index stats: %w", err)
	}
	out := IndexStatsOutput{
		TotalVectors: stats.TotalVectors,
		Dimension:    stats.Dimension,
		Fullness:     stats.Fullness,
	}

	if input.OwnerID != "" {
		recs, err := s.cfg.Library.Documents(ctx, input.OwnerID)
		if err != nil {
			return nil, IndexStatsOutput{}, fmt.Errorf("failed to list documents: %w", err)
		}
		out.Documents = make([]DocumentInfo, 0, len(recs))
		for _, r := range recs {
			out.Documents = append(out.Documents, DocumentInfo{
				DocumentID:     r.ID,
				Filename:       r.Filename,
				Title:          r.Title,
				ChunkCount:     r.ChunkCount,
				CharacterCount: r.CharacterCount,
				UploadedAt:     r.UploadedAt,
			})
		}
	}
	return nil, out, nil
}

// askDocuments handles ask_documents.
func (s *Server) askDocuments(ctx context.Context, req *mcp.CallToolRequest, input AskDocumentsInput) (
	*mcp.CallToolResult, AskDocumentsOutput, error,
) {
	if s.cfg.Generator == nil {
		return nil, AskDocumentsOutput{}, errs.Errorf(errs.Configuration, "ask documents", "answer generation is not configured")
	}

	sources, err := s.cfg.Library.Search(ctx, s.cfg.Defaults.Query(input.Question, input.OwnerID, input.DocumentID, input.TopK, input.MinScore))
	if err != nil {
		return nil, AskDocumentsOutput{}, fmt.Errorf("failed to retrieve sources: %w", err)
	}

	ans, err := s.cfg.Generator.Answer(ctx, input.Question, sources)
	if err != nil {
		return nil, AskDocumentsOutput{}, fmt.Errorf("failed to generate answer: %w", err)
	}
	return nil, *ans, nil
}

// ingestDocument handles ingest_document.
func (s *Server) ingestDocument(ctx context.Context, req *mcp.CallToolRequest, input IngestDocumentInput) (
	*mcp.CallToolResult, IngestDocumentOutput, error,
) {
	const op = "ingest document"

	var data []byte
	switch {
	case input.Text != "" && input.PDFBase64 != "":
		return nil, IngestDocumentOutput{}, errs.Errorf(errs.Invalid, op, "set either text or pdf_base64, not both")
	case input.PDFBase64 != "":
		if !strings.EqualFold(filepath.Ext(input.Filename), ".pdf") {
			return nil, IngestDocumentOutput{}, errs.Errorf(errs.Invalid, op, "pdf_base64 needs a .pdf filename, got %q", input.Filename)
		}
		decoded, err := base64.StdEncoding.DecodeString(input.PDFBase64)
		if err != nil {
			return nil, IngestDocumentOutput{}, errs.E(errs.Invalid, op, fmt.Errorf("decode pdf_base64: %w", err))
		}
		data = decoded
	case input.Text != "":
		data = []byte(input.Text)
	default:
		return nil, IngestDocumentOutput{}, errs.Errorf(errs.Invalid, op, "text or pdf_base64 is required")
	}

	res, err := s.cfg.Library.Upload(ctx, library.UploadRequest{
		OwnerID:  input.OwnerID,
		Filename: input.Filename,
		Data:     data,
	})
	if err != nil {
		return nil, IngestDocumentOutput{}, fmt.Errorf("failed to ingest document: %w", err)
	}

	return nil, IngestDocumentOutput{
		DocumentID:     res.Record.ID,
		Title:          res.Record.Title,
		PageCount:      res.Record.PageCount,
		ChunkCount:     res.Record.ChunkCount,
		CharacterCount: res.Record.CharacterCount,
	}, nil
}
