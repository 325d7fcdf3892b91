// Package mcp exposes the document library as Model Context Protocol tools.
package mcp

import (
	"time"

	"github.com/lexai-study/lexai-retrieval/internal/answer"
)

// SearchDocumentsInput defines the input parameters for the search_documents tool.
type SearchDocumentsInput struct {
	// OwnerID scopes the search to one user's documents.
	OwnerID string `json:"owner_id" jsonschema:"the user whose documents are searched"`
	// Query is the free-text search query.
	Query string `json:"query" jsonschema:"the semantic search query"`
	// DocumentID optionally restricts the search to one document.
	DocumentID string `json:"document_id,omitempty" jsonschema:"restrict the search to this document"`
	// TopK is the maximum number of chunks to return.
	TopK int `json:"top_k,omitempty" jsonschema:"maximum number of chunks to return (default 5)"`
	// MinScore is the minimum relevance threshold (0-1).
	MinScore *float64 `json:"min_score,omitempty" jsonschema:"minimum relevance score between 0 and 1 (default 0.5)"`
}

// SearchDocumentsOutput contains the search results.
type SearchDocumentsOutput struct {
	Results []SearchResult `json:"results"`
	// Message provides informational context (e.g., "No matching chunks found").
	Message string `json:"message,omitempty"`
}

// SearchResult is one ranked chunk.
type SearchResult struct {
	ID            string  `json:"id"`
	DocumentID    string  `json:"document_id"`
	Filename      string  `json:"filename"`
	Title         string  `json:"title,omitempty"`
	Author        string  `json:"author,omitempty"`
	ChunkID       int     `json:"chunk_id"`
	Score         float64 `json:"score"`
	OriginalScore float64 `json:"original_score"`
	Overlap       int     `json:"overlap"`
	Text          string  `json:"text"`
}

// GetDocumentChunksInput defines the input parameters for the get_document_chunks tool.
type GetDocumentChunksInput struct {
	OwnerID    string `json:"owner_id" jsonschema:"the user who owns the document"`
	DocumentID string `json:"document_id" jsonschema:"the document whose chunks are returned"`
}

// GetDocumentChunksOutput lists a document's chunks in chunk order.
type GetDocumentChunksOutput struct {
	DocumentID string        `json:"document_id"`
	Filename   string        `json:"filename,omitempty"`
	Chunks     []ChunkResult `json:"chunks"`
	Count      int           `json:"count"`
	// Found indicates whether any chunk exists for the document.
	Found bool `json:"found"`
}

// ChunkResult is one stored chunk. Text is the stored preview.
type ChunkResult struct {
	ChunkID   int    `json:"chunk_id"`
	StartChar int    `json:"start_char"`
	EndChar   int    `json:"end_char"`
	Text      string `json:"text"`
}

// DeleteDocumentInput defines the input parameters for the delete_document tool.
type DeleteDocumentInput struct {
	OwnerID    string `json:"owner_id" jsonschema:"the user who owns the document"`
	DocumentID string `json:"document_id" jsonschema:"the document to delete"`
}

type DeleteDocumentOutput struct {
	DocumentID string `json:"document_id"`
	Deleted    bool   `json:"deleted"`
}

// IndexStatsInput defines the input parameters for the index_stats tool.
type IndexStatsInput struct {
	// OwnerID optionally adds the owner's document list to the output.
	OwnerID string `json:"owner_id,omitempty" jsonschema:"include this user's documents in the output"`
}

// IndexStatsOutput reports vector index diagnostics.
type IndexStatsOutput struct {
	TotalVectors uint64         `json:"total_vectors"`
	Dimension    int            `json:"dimension"`
	Fullness     float64        `json:"fullness"`
	Documents    []DocumentInfo `json:"documents,omitempty"`
}

// DocumentInfo summarizes one document record.
type DocumentInfo struct {
	DocumentID     string    `json:"document_id"`
	Filename       string    `json:"filename"`
	Title          string    `json:"title,omitempty"`
	ChunkCount     int       `json:"chunk_count"`
	CharacterCount int       `json:"character_count"`
	UploadedAt     time.Time `json:"uploaded_at"`
}

// AskDocumentsInput defines the input parameters for the ask_documents tool.
type AskDocumentsInput struct {
	OwnerID    string   `json:"owner_id" jsonschema:"the user whose documents answer the question"`
	Question   string   `json:"question" jsonschema:"the question to answer"`
	DocumentID string   `json:"document_id,omitempty" jsonschema:"answer from this document only"`
	TopK       int      `json:"top_k,omitempty" jsonschema:"number of chunks given to the model as sources (default 5)"`
	MinScore   *float64 `json:"min_score,omitempty" jsonschema:"minimum relevance score for a source between 0 and 1"`
}

// AskDocumentsOutput is the generated answer with its citations.
type AskDocumentsOutput = answer.Answer

// IngestDocumentInput defines the input parameters for the ingest_document tool.
// Exactly one of Text and PDFBase64 is set.
type IngestDocumentInput struct {
	OwnerID   string `json:"owner_id" jsonschema:"the user who will own the document"`
	Filename  string `json:"filename" jsonschema:"the original file name"`
	Text      string `json:"text,omitempty" jsonschema:"plain text content"`
	PDFBase64 string `json:"pdf_base64,omitempty" jsonschema:"base64 encoded PDF content"`
}

// IngestDocumentOutput reports the stored document.
type IngestDocumentOutput struct {
	DocumentID     string `json:"document_id"`
	Title          string `json:"title"`
	PageCount      int    `json:"page_count"`
	ChunkCount     int    `json:"chunk_count"`
	CharacterCount int    `json:"character_count"`
}
