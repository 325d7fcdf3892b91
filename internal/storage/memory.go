package storage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is a brute-force cosine index held in process memory.
// A zero capacity means unbounded.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	capacity  int
	vectors   map[string]EmbeddedVector
}

// NewMemoryStore creates an empty store for vectors of the given dimension.
func NewMemoryStore(dimension, capacity int) *MemoryStore {
	return &MemoryStore{
		dimension: dimension,
		capacity:  capacity,
		vectors:   make(map[string]EmbeddedVector),
	}
}

func (s *MemoryStore) Upsert(ctx context.Context, vectors []EmbeddedVector) error {
	if err := validateVectors(vectors, s.dimension); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capacity > 0 {
		added := 0
		seen := make(map[string]struct{}, len(vectors))
		for _, v := range vectors {
			if _, ok := s.vectors[v.ID]; ok {
				continue
			}
			if _, ok := seen[v.ID]; ok {
				continue
			}
			seen[v.ID] = struct{}{}
			added++
		}
		if len(s.vectors)+added > s.capacity {
			return fmt.Errorf("%w: %d stored, %d new, capacity %d", ErrCapacityExceeded, len(s.vectors), added, s.capacity)
		}
	}

	for _, v := range vectors {
		v.Values = append([]float32(nil), v.Values...)
		s.vectors[v.ID] = v
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, values []float32, topK int, filter Filter) ([]Match, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	if err := checkDimension("query", len(values), s.dimension); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	matches := make([]Match, 0)
	for id, v := range s.vectors {
		if !filter.matches(v.Metadata) {
			continue
		}
		matches = append(matches, Match{ID: id, Score: cosine(values, v.Values), Metadata: v.Metadata})
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *MemoryStore) Delete(ctx context.Context, filter Filter) error {
	if err := filter.validateDelete(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, v := range s.vectors {
		if filter.matches(v.Metadata) {
			delete(s.vectors, id)
		}
	}
	return nil
}

func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]Match, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Match
	for id, v := range s.vectors {
		if filter.matches(v.Metadata) {
			out = append(out, Match{ID: id, Metadata: v.Metadata})
		}
	}
	return out, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &Stats{TotalVectors: uint64(len(s.vectors)), Dimension: s.dimension}
	if s.capacity > 0 {
		st.Fullness = float64(len(s.vectors)) / float64(s.capacity)
	}
	return st, nil
}

func (s *MemoryStore) Health(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// cosine returns the cosine similarity of a and b, or 0 when either is a zero vector.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
