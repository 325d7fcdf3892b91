// Package records keeps the relational document records that sit beside the
// vector index: one row per uploaded document, keyed by the document id
// shared with vector metadata.
package records

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when no record matches the owner and document id.
var ErrNotFound = errors.New("document record not found")

// Record describes one uploaded document.
type Record struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"user_id"`
	Filename       string    `json:"filename"`
	Title          string    `json:"title,omitempty"`
	Author         string    `json:"author,omitempty"`
	PageCount      int       `json:"page_count"`
	ChunkCount     int       `json:"chunk_count"`
	CharacterCount int       `json:"character_count"`
	FileSizeBytes  int64     `json:"file_size_bytes"`
	UploadedAt     time.Time `json:"uploaded_at"`
}

// Store persists document records. Every lookup is scoped by owner.
type Store interface {
	Insert(ctx context.Context, r *Record) error
	Get(ctx context.Context, ownerID, id string) (*Record, error)
	// List returns the owner's records, newest upload first.
	List(ctx context.Context, ownerID string) ([]*Record, error)
	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, ownerID, id string) error
	Close() error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Insert(_ context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ID]; ok {
		return errors.New("document record already exists: " + r.ID)
	}
	s.records[r.ID] = *r
	return nil
}

func (s *MemoryStore) Get(_ context.Context, ownerID, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok || r.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) List(_ context.Context, ownerID string) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Record
	for _, r := range s.records {
		if r.OwnerID == ownerID {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok && r.OwnerID == ownerID {
		delete(s.records, id)
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
