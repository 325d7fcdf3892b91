package records

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ScopedByOwner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now().UTC()

	require.NoError(t, s.Insert(ctx, &Record{ID: "d1", OwnerID: "u1", Filename: "a.pdf", UploadedAt: now.Add(-time.Hour)}))
	require.NoError(t, s.Insert(ctx, &Record{ID: "d2", OwnerID: "u1", Filename: "b.pdf", UploadedAt: now}))
	require.NoError(t, s.Insert(ctx, &Record{ID: "d3", OwnerID: "u2", Filename: "c.pdf", UploadedAt: now}))

	r, err := s.Get(ctx, "u1", "d1")
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", r.Filename)

	_, err = s.Get(ctx, "u2", "d1")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "d2", list[0].ID, "newest first")

	// Another owner cannot delete the record.
	require.NoError(t, s.Delete(ctx, "u2", "d1"))
	_, err = s.Get(ctx, "u1", "d1")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "u1", "d1"))
	_, err = s.Get(ctx, "u1", "d1")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.Delete(ctx, "u1", "d1"))
}

func TestMemoryStore_DuplicateInsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Insert(ctx, &Record{ID: "d1", OwnerID: "u1"}))
	assert.Error(t, s.Insert(ctx, &Record{ID: "d1", OwnerID: "u1"}))
}
