// Package storage holds the vector index adapters: Qdrant, pgvector and an
// in-memory store used for tests and single-process runs.
package storage

import (
	"context"
	"fmt"
)

// VectorStore upserts embedded chunks and answers owner-scoped similarity queries.
// Implementations are safe for concurrent use.
type VectorStore interface {
	// Upsert inserts or replaces vectors keyed by ID, in batches.
	// Any batch failure fails the whole call.
	Upsert(ctx context.Context, vectors []EmbeddedVector) error

	// Query returns up to topK nearest vectors by cosine similarity,
	// ordered by score descending. No score floor is applied.
	Query(ctx context.Context, values []float32, topK int, filter Filter) ([]Match, error)

	// Delete removes every vector matching owner and document.
	Delete(ctx context.Context, filter Filter) error

	// List returns every vector matching the filter, in no particular order.
	List(ctx context.Context, filter Filter) ([]Match, error)

	Stats(ctx context.Context) (*Stats, error)
	Health(ctx context.Context) error
	Close() error
}

func (f Filter) validate() error {
	if f.OwnerID == "" {
		return ErrMissingOwner
	}
	return nil
}

func (f Filter) validateDelete() error {
	if err := f.validate(); err != nil {
		return err
	}
	if f.DocumentID == "" {
		return ErrMissingDocument
	}
	return nil
}

// matches reports whether m satisfies the filter.
func (f Filter) matches(m Metadata) bool {
	if m.OwnerID != f.OwnerID {
		return false
	}
	return f.DocumentID == "" || m.DocumentID == f.DocumentID
}

func checkDimension(what string, got, want int) error {
	if got != want {
		return fmt.Errorf("%w: %s has %d dimensions, expected %d", ErrDimensionMismatch, what, got, want)
	}
	return nil
}

// validateVectors checks every vector's id and dimension before anything is written.
func validateVectors(vectors []EmbeddedVector, dim int) error {
	for i, v := range vectors {
		if v.ID == "" {
			return fmt.Errorf("vector %d has no id", i)
		}
		if v.Metadata.OwnerID == "" {
			return fmt.Errorf("vector %d: %w", i, ErrMissingOwner)
		}
		if err := checkDimension(fmt.Sprintf("vector %d", i), len(v.Values), dim); err != nil {
			return err
		}
	}
	return nil
}

// batches splits n items into [start, end) ranges of at most size.
func batches(n, size int) [][2]int {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][2]int
	for i := 0; i < n; i += size {
		out = append(out, [2]int{i, min(i+size, n)})
	}
	return out
}
