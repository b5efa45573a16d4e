package mediastore

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced asset or directory
	// does not resolve.
	ErrNotFound = errors.New("entity not found")

	// ErrEmptyMetaKey is returned when a metadata key is empty.
	ErrEmptyMetaKey = errors.New("metadata key cannot be empty")

	// ErrMissingStream is returned by Create when the draft carries no
	// binary stream.
	ErrMissingStream = errors.New("asset has no stream attached")

	// ErrAlreadyMember is returned when an asset is added to a
	// directory it already belongs to.
	ErrAlreadyMember = errors.New("asset is already contained in directory")

	// ErrNotMember is returned when an operation requires the asset to
	// be a member of the directory and it is not.
	ErrNotMember = errors.New("asset is not contained in directory")

	// ErrIndexOutOfRange is returned for an insertion or reposition
	// index outside the valid range.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// StorageError wraps a BlobStore failure. When a create-path failure
// leaves an orphaned blob behind, Identifier carries the orphaned
// store identifier for operational follow-up.
type StorageError struct {
	Op         string
	Identifier string
	Err        error
}

func (e *StorageError) Error() string {
	if e.Identifier == "" {
		return fmt.Sprintf("blob store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("blob store %s %q: %v", e.Op, e.Identifier, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the operation failed because its deadline
// passed. The underlying context error stays reachable through Unwrap,
// so errors.Is(err, context.DeadlineExceeded) works as well.
func (e *StorageError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// PersistenceError wraps a RecordStore transaction failure such as a
// conflict or connectivity problem.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("record store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the transaction failed because its deadline
// passed.
func (e *PersistenceError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}
