package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrAggregateNotFound is returned when neither a snapshot nor any
	// events exist for the requested aggregate.
	ErrAggregateNotFound = errors.New("aggregate not found")

	// ErrRecordConflict is the canonical retriable error: a uniqueness
	// violation on (originator id, originator version) or on a snapshot key.
	ErrRecordConflict = errors.New("record conflict")

	// ErrPersistence covers any other recorder failure: connectivity,
	// integrity violations unrelated to the version constraint, exhausted
	// store-internal retries.
	ErrPersistence = errors.New("persistence failure")

	// ErrTranscoding is returned for an unknown type tag on decode, or when
	// encoding a value with no registered transcoding.
	ErrTranscoding = errors.New("transcoding failure")

	// ErrIntegrity is returned when cipher tag verification fails,
	// decompression fails, or an upcaster refuses a record.
	ErrIntegrity = errors.New("integrity check failed")
)

// RecordConflictError reports which originator and version collided.
// Callers treat it as an optimistic-concurrency-control failure and may
// retry after re-reading; the library itself never retries.
type RecordConflictError struct {
	OriginatorID      uuid.UUID
	OriginatorVersion int64
}

func (e *RecordConflictError) Error() string {
	return fmt.Sprintf("record conflict: version %d already stored for originator %s",
		e.OriginatorVersion, e.OriginatorID)
}

func (e *RecordConflictError) Is(target error) bool {
	return target == ErrRecordConflict
}

// TranscodingError names the topic or type tag that could not be handled.
type TranscodingError struct {
	Tag    string
	Reason string
}

func (e *TranscodingError) Error() string {
	return fmt.Sprintf("transcoding failure: %s: %s", e.Tag, e.Reason)
}

func (e *TranscodingError) Is(target error) bool {
	return target == ErrTranscoding
}

// IntegrityError wraps a failure in the byte pipeline (cipher, compressor)
// or an upcaster that refused a record.
type IntegrityError struct {
	Op  string
	Err error
}

func (e *IntegrityError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("integrity check failed: %s", e.Op)
	}
	return fmt.Sprintf("integrity check failed: %s: %v", e.Op, e.Err)
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a recorder failure that is not a record conflict.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
