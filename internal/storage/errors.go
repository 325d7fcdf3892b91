package storage

import "errors"

var (
	ErrQdrantUnreachable  = errors.New("qdrant server unreachable")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrMissingOwner       = errors.New("filter requires an owner id")
	ErrMissingDocument    = errors.New("delete filter requires a document id")
	ErrCapacityExceeded   = errors.New("index capacity exceeded")
)
