package storage

import (
	"fmt"

	"github.com/google/uuid"
)

// Metadata is the retrieval payload stored with every vector.
type Metadata struct {
	OwnerID    string // Owning user; every query and delete filters on it
	DocumentID string // Shared with the relational document record
	ChunkID    int    // Position in document (0, 1, 2...)
	Text       string // Preview of the chunk text, truncated to PreviewChars
	Filename   string
	Title      string
	Author     string
	Length     int // Full chunk length in characters
	StartChar  int
	EndChar    int
}

// EmbeddedVector is a chunk's embedding plus its metadata.
type EmbeddedVector struct {
	ID       string    // Name-based UUID, see VectorID
	Values   []float32 // Embedding, dimension fixed by the index
	Metadata Metadata
}

// Match is one similarity query result. Score is cosine similarity, higher is closer.
type Match struct {
	ID       string
	Score    float64
	Metadata Metadata
}

// Filter is an exact-match metadata filter. OwnerID is mandatory.
type Filter struct {
	OwnerID    string
	DocumentID string // Optional for Query and List, required for Delete
}

// Stats is diagnostic information about an index.
type Stats struct {
	TotalVectors uint64
	Dimension    int
	Fullness     float64 // Fraction of capacity used; 0 for backends without a ceiling
}

const (
	// DefaultBatchSize is the number of vectors sent per upsert call.
	DefaultBatchSize = 100

	// PreviewChars bounds the metadata text preview.
	PreviewChars = 1000
)

// vectorIDSpace namespaces name-based vector ids.
var vectorIDSpace = uuid.MustParse("6f1c3a52-8d0e-4b7a-9f43-2c5e1d7b9a10")

// VectorID derives a vector id from owner, document, filename, chunk index and a salt.
// The same inputs always produce the same id, so re-ingesting a document with the
// same salt overwrites in place. Distinct documents never share ids.
func VectorID(ownerID, documentID, filename string, chunkID int, salt int64) string {
	name := fmt.Sprintf("%s_%s_%s_%d_%d", ownerID, documentID, filename, chunkID, salt)
	return uuid.NewMD5(vectorIDSpace, []byte(name)).String()
}

// Preview truncates text to at most n characters.
func Preview(text string, n int) string {
	if n <= 0 {
		return text
	}
	count := 0
	for i := range text {
		if count == n {
			return text[:i]
		}
		count++
	}
	return text
}
