// Package errs defines the failure taxonomy shared by the retrieval core.
//
// Every failure that crosses a component boundary is an *Error carrying a Kind,
// so callers can decide on messaging and compensation without string matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// Unknown is the kind of errors that were not produced by this package.
	Unknown Kind = iota
	// Invalid marks a malformed request (empty query, top_k < 1, missing owner).
	Invalid
	// Extraction marks source text that could not be obtained.
	Extraction
	// Embedding marks a failed or malformed embedding backend call.
	Embedding
	// Store marks a failed vector or record store call.
	Store
	// Configuration marks a fatal startup problem such as a dimension mismatch.
	Configuration
	// NotFound marks a missing document record.
	NotFound
	// Generation marks a failed answer-generation call.
	Generation
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid_request"
	case Extraction:
		return "extraction_failure"
	case Embedding:
		return "embedding_failure"
	case Store:
		return "store_failure"
	case Configuration:
		return "configuration_failure"
	case NotFound:
		return "not_found"
	case Generation:
		return "generation_failure"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind and operation name. A nil err yields nil.
// An err that is already classified is returned unchanged: the innermost
// classification wins.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
