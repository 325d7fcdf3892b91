package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestE_NilPassesThrough(t *testing.T) {
	assert.NoError(t, E(Store, "upsert", nil))
}

func TestKindOf_ThroughWrapping(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("ingest doc-1: %w", E(Store, "upsert", base))

	assert.Equal(t, Store, KindOf(err))
	assert.True(t, Is(err, Store))
	assert.False(t, Is(err, Embedding))
	assert.ErrorIs(t, err, base)
}

func TestE_SameKindNotDoubleWrapped(t *testing.T) {
	inner := E(Embedding, "embed batch", errors.New("429"))
	outer := E(Embedding, "retrieve", inner)

	assert.Same(t, inner, outer)
}

func TestE_KeepsInnerKind(t *testing.T) {
	inner := Errorf(Invalid, "embed", "input 0 is empty")
	outer := E(Embedding, "retrieve", inner)

	assert.Equal(t, Invalid, KindOf(outer))
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Equal(t, Unknown, KindOf(errors.New("plain")))
	assert.False(t, Is(nil, Unknown))
}

func TestError_Message(t *testing.T) {
	err := Errorf(Configuration, "ensure collection", "dimension %d != %d", 768, 1536)
	assert.Equal(t, "ensure collection: configuration_failure: dimension 768 != 1536", err.Error())
}
