// Package library is the orchestrating caller around the retrieval pipeline.
// It pairs vector writes with document records and compensates when the two
// stores disagree.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lexai-study/lexai-retrieval/internal/chunking"
	"github.com/lexai-study/lexai-retrieval/internal/errs"
	"github.com/lexai-study/lexai-retrieval/internal/indexer"
	"github.com/lexai-study/lexai-retrieval/internal/pdftext"
	"github.com/lexai-study/lexai-retrieval/internal/records"
	"github.com/lexai-study/lexai-retrieval/internal/retrieval"
	"github.com/lexai-study/lexai-retrieval/internal/storage"
)

// UploadRequest is one file to add to an owner's library.
type UploadRequest struct {
	OwnerID  string
	Filename string
	Data     []byte // PDF bytes, or UTF-8 text for non-PDF filenames
}

// UploadResult reports what was stored.
type UploadResult struct {
	Record *records.Record
	Info   chunking.DocumentInfo
}

// Library coordinates the pipeline and the record store.
type Library struct {
	pipeline *indexer.Pipeline
	records  records.Store
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// New creates a Library. If logger is nil, slog.Default() is used.
func New(pipeline *indexer.Pipeline, store records.Store, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{
		pipeline: pipeline,
		records:  store,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Upload extracts, indexes and records one file.
//
// If writing the record fails after vectors were stored, the vectors are
// deleted again. A failed compensation is logged and the original error returned.
func (l *Library) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	const op = "upload"

	if req.OwnerID == "" || req.Filename == "" {
		return nil, errs.Errorf(errs.Invalid, op, "owner id and filename are required")
	}

	doc, err := extract(req)
	if err != nil {
		return nil, err
	}

	docID := l.newID()
	uploadedAt := l.now().UTC()

	result, err := l.pipeline.Ingest(ctx, indexer.IngestRequest{
		OwnerID:    req.OwnerID,
		DocumentID: docID,
		Text:       doc.Text,
		Info:       doc.Info,
		Salt:       uploadedAt.Unix(),
	})
	if err != nil {
		// Some upsert batches may have landed before the failure.
		if errs.Is(err, errs.Store) {
			l.compensate(ctx, req.OwnerID, docID)
		}
		return nil, err
	}

	rec := &records.Record{
		ID:             docID,
		OwnerID:        req.OwnerID,
		Filename:       req.Filename,
		Title:          doc.Info.Title,
		Author:         doc.Info.Author,
		PageCount:      doc.Info.PageCount,
		ChunkCount:     result.ChunkCount,
		CharacterCount: result.CharacterCount,
		FileSizeBytes:  doc.FileSize,
		UploadedAt:     uploadedAt,
	}
	if err := l.records.Insert(ctx, rec); err != nil {
		l.logger.Error("Failed to store document record", "document_id", docID, "error", err)
		l.compensate(ctx, req.OwnerID, docID)
		return nil, errs.E(errs.Store, op, fmt.Errorf("document record %s: %w", docID, err))
	}

	l.logger.Info("Uploaded document", "document_id", docID, "filename", req.Filename, "chunks", rec.ChunkCount)
	return &UploadResult{Record: rec, Info: doc.Info}, nil
}

// compensate removes vectors written for a document whose upload failed.
func (l *Library) compensate(ctx context.Context, ownerID, docID string) {
	if err := l.pipeline.Delete(ctx, ownerID, docID); err != nil {
		l.logger.Error("Compensating delete failed, vectors may be orphaned", "document_id", docID, "error", err)
		return
	}
	l.logger.Info("Rolled back vectors", "document_id", docID)
}

// extract reads a PDF through pdftext; any other file must be UTF-8 text.
func extract(req UploadRequest) (*pdftext.Document, error) {
	if strings.EqualFold(filepath.Ext(req.Filename), ".pdf") {
		return pdftext.ExtractBytes(req.Data, req.Filename)
	}

	if !utf8.Valid(req.Data) {
		return nil, errs.Errorf(errs.Extraction, "upload", "%s is neither a pdf nor utf-8 text", req.Filename)
	}
	return &pdftext.Document{
		Text: string(req.Data),
		Info: chunking.DocumentInfo{
			Filename: req.Filename,
			Title:    pdftext.Title("", req.Filename),
		},
		FileSize: int64(len(req.Data)),
	}, nil
}

// Delete removes a document's vectors, then its record. A record-store failure
// is logged and does not fail the call.
func (l *Library) Delete(ctx context.Context, ownerID, docID string) error {
	if err := l.pipeline.Delete(ctx, ownerID, docID); err != nil {
		return err
	}
	if err := l.records.Delete(ctx, ownerID, docID); err != nil {
		l.logger.Warn("Failed to delete document record", "document_id", docID, "error", err)
	}
	return nil
}

// Search runs a ranked query.
func (l *Library) Search(ctx context.Context, q retrieval.Query) ([]retrieval.Match, error) {
	return l.pipeline.Search(ctx, q)
}

// Chunks returns a document's stored chunks ordered by chunk id.
func (l *Library) Chunks(ctx context.Context, ownerID, docID string) ([]storage.Match, error) {
	chunks, err := l.pipeline.SearchByDocument(ctx, ownerID, docID)
	if err != nil {
		return nil, err
	}
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Metadata.ChunkID < chunks[j].Metadata.ChunkID
	})
	return chunks, nil
}

// Document returns the owner's record for docID.
func (l *Library) Document(ctx context.Context, ownerID, docID string) (*records.Record, error) {
	rec, err := l.records.Get(ctx, ownerID, docID)
	if errors.Is(err, records.ErrNotFound) {
		return nil, errs.E(errs.NotFound, "get document", fmt.Errorf("%s: %w", docID, err))
	}
	if err != nil {
		return nil, errs.E(errs.Store, "get document", err)
	}
	return rec, nil
}

// Documents lists the owner's records, newest first.
func (l *Library) Documents(ctx context.Context, ownerID string) ([]*records.Record, error) {
	recs, err := l.records.List(ctx, ownerID)
	if err != nil {
		return nil, errs.E(errs.Store, "list documents", err)
	}
	return recs, nil
}

// Stats reports vector index diagnostics.
func (l *Library) Stats(ctx context.Context) (*storage.Stats, error) {
	return l.pipeline.Stats(ctx)
}
