package core

import (
	"errors"
	"fmt"
)

// ErrorKind is one of the error taxonomy entries. It is not a Go type but a
// discriminant carried by PipelineError, so callers can branch on kind
// without type-asserting a tree of wrapper types.
type ErrorKind string

const (
	KindInputInvalid     ErrorKind = "input_invalid"
	KindAuthDenied       ErrorKind = "auth_denied"
	KindNotFound         ErrorKind = "not_found"
	KindTransientNetwork ErrorKind = "transient_network"
	KindProviderConflict ErrorKind = "provider_conflict"
	KindParseFailed      ErrorKind = "parse_failed"
	KindGenerationFailed ErrorKind = "generation_failed"
	KindStoreFailed      ErrorKind = "store_failed"
	KindFatalInternal    ErrorKind = "fatal_internal"
)

// Retryable reports whether this kind should be retried with exponential
// backoff by a caller that performs network or provider operations.
func (k ErrorKind) Retryable() bool {
	return k == KindTransientNetwork
}

// PipelineError carries a taxonomy Kind, the pipeline Stage it was raised in,
// and the wrapped cause. It satisfies errors.Unwrap so callers can still
// errors.Is/errors.As through to the underlying error.
type PipelineError struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError wraps err as a PipelineError of the given kind and stage.
func NewPipelineError(kind ErrorKind, stage string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Stage: stage, Err: err}
}

// IsKind reports whether err is a *PipelineError of the given kind anywhere
// in its chain.
func IsKind(err error, kind ErrorKind) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// Sentinel errors for conditions that don't need stage/kind context —
// mirrors storage.ErrNotFound in the reference implementation.
var (
	// ErrNotFound is returned when a requested record or object is absent.
	ErrNotFound = errors.New("record not found")
	// ErrKeyInFlight reports that a pipeline key already has a pending run.
	// The orchestrator's Dispatcher does not return it: a trigger for an
	// in-flight key replaces that key's pending slot instead.
	ErrKeyInFlight = errors.New("pipeline key already has a pending run")
)
