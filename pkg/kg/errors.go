package kg

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine errors.
type ErrorKind string

const (
	KindDataFetch     ErrorKind = "DATA_FETCH"
	KindMalformedEdge ErrorKind = "MALFORMED_EDGE"
	KindEmptyGraph    ErrorKind = "EMPTY_GRAPH"
	KindInvalidInput  ErrorKind = "INVALID_INPUT"
)

// Sentinels for errors.Is.
var (
	ErrDataFetch     = errors.New("data fetch failed")
	ErrMalformedEdge = errors.New("edge references unknown node")
	ErrEmptyGraph    = errors.New("graph has no nodes")
	ErrInvalidInput  = errors.New("invalid input")
)

// Error is an engine error carrying its kind and the failing operation.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Op)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrDataFetch:
		return e.Kind == KindDataFetch
	case ErrMalformedEdge:
		return e.Kind == KindMalformedEdge
	case ErrEmptyGraph:
		return e.Kind == KindEmptyGraph
	case ErrInvalidInput:
		return e.Kind == KindInvalidInput
	}
	return false
}

// FetchError wraps a collaborator failure.
func FetchError(op string, err error) *Error {
	return &Error{Kind: KindDataFetch, Op: op, Err: err}
}

// InvalidInput reports a rejected argument.
func InvalidInput(op, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Err: fmt.Errorf(format, args...)}
}

// MalformedEdgeError describes an edge dropped during ingestion.
type MalformedEdgeError struct {
	Edge    Edge
	Missing string
}

// Error implements the error interface
func (e *MalformedEdgeError) Error() string {
	return fmt.Sprintf("%s: edge %s->%s (%s): unknown node %q",
		KindMalformedEdge, e.Edge.Source, e.Edge.Target, e.Edge.Label, e.Missing)
}

// Is matches ErrMalformedEdge.
func (e *MalformedEdgeError) Is(target error) bool { return target == ErrMalformedEdge }
