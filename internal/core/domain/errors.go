package domain

import (
	"context"
	"errors"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested collection or paper does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a collection with the same id already exists
	// on disk or in the vector index.
	ErrConflict = errors.New("conflict")

	// ErrAlreadyExists is returned by a vector index asked to create a
	// collection it already holds.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidConfig indicates a configuration that can never succeed,
	// such as chunk overlap not smaller than chunk size.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamUnavailable indicates an embedding provider or the vector
	// index could not be reached after bounded retries.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrIndeterminate indicates a write whose outcome is unknown.
	// It never escapes the ingestion pipeline.
	ErrIndeterminate = errors.New("indeterminate outcome")

	// ErrInconsistent indicates the filesystem and the vector index disagree.
	ErrInconsistent = errors.New("filesystem and index inconsistent")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Answer generation is disabled without it.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrUnsupportedType indicates an unknown backend or loader type.
	ErrUnsupportedType = errors.New("unsupported type")
)

// OpError attaches collection and paper context to a failure.
type OpError struct {
	Op           string
	CollectionID string
	PaperID      string
	Err          error
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.CollectionID != "" {
		b.WriteString(" collection=")
		b.WriteString(e.CollectionID)
	}
	if e.PaperID != "" {
		b.WriteString(" paper=")
		b.WriteString(e.PaperID)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies an error for user-facing output.
type ErrorKind string

// Error kinds, one per sentinel callers are expected to branch on.
const (
	KindNotFound            ErrorKind = "not_found"
	KindConflict            ErrorKind = "conflict"
	KindInvalidConfig       ErrorKind = "invalid_config"
	KindInvalidInput        ErrorKind = "invalid_input"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindInconsistent        ErrorKind = "inconsistent"
	KindCancelled           ErrorKind = "cancelled"
	KindInternal            ErrorKind = "internal"
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrNotFound, KindNotFound},
	{ErrConflict, KindConflict},
	{ErrAlreadyExists, KindConflict},
	{ErrInvalidConfig, KindInvalidConfig},
	{ErrInvalidInput, KindInvalidInput},
	{ErrUpstreamUnavailable, KindUpstreamUnavailable},
	{ErrLLMUnavailable, KindUpstreamUnavailable},
	{ErrInconsistent, KindInconsistent},
}

// KindOf maps err onto the first matching kind.
// Context cancellation is reported as KindCancelled.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindInternal
}
