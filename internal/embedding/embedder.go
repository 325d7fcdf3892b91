// Package embedding turns chunk and query text into fixed-dimension vectors.
package embedding

import (
	"context"
	"fmt"
	"strings"
)

// Embedder produces embeddings. EmbedBatch preserves input order: output[i]
// is the embedding of texts[i]. A failed call returns no vectors at all.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Name() string
}

// Preprocess collapses whitespace runs to single spaces and truncates the
// result to at most maxChars characters. maxChars <= 0 disables truncation.
func Preprocess(text string, maxChars int) string {
	text = strings.Join(strings.Fields(text), " ")
	if maxChars <= 0 {
		return text
	}
	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i]
		}
		n++
	}
	return text
}

// checkVectors verifies a backend response before it is handed to callers.
func checkVectors(vectors [][]float32, want, dim int) error {
	if len(vectors) != want {
		return fmt.Errorf("backend returned %d embeddings for %d inputs", len(vectors), want)
	}
	for i, v := range vectors {
		if v == nil {
			return fmt.Errorf("backend returned no embedding for input %d", i)
		}
		if len(v) != dim {
			return fmt.Errorf("embedding %d has %d dimensions, expected %d", i, len(v), dim)
		}
	}
	return nil
}

// toFloat32 converts []float64 to []float32.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
