package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Library errors. Every coordinator failure wraps exactly one of these.
	ErrNotFound       = fmt.Errorf("not found")
	ErrConflict       = fmt.Errorf("conflict")
	ErrInvalidInput   = fmt.Errorf("invalid input")
	ErrStorageFailure = fmt.Errorf("storage failure")

	ErrSongNotFound     = fmt.Errorf("song %w", ErrNotFound)
	ErrPlaylistNotFound = fmt.Errorf("playlist %w", ErrNotFound)
	ErrSongExists       = fmt.Errorf("song already exists: %w", ErrConflict)
	ErrPlaylistExists   = fmt.Errorf("playlist already exists: %w", ErrConflict)

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument: %w", ErrInvalidInput)
	ErrInvalidFlag     = fmt.Errorf("invalid flag value: %w", ErrInvalidInput)
	ErrUnsafeName      = fmt.Errorf("unsafe storage name: %w", ErrInvalidInput)
)

// ErrorKind classifies an error into the library's error taxonomy.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindConflict
	KindInvalidInput
	KindStorageFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindInvalidInput:
		return "InvalidInput"
	case KindStorageFailure:
		return "StorageFailure"
	default:
		return "Unknown"
	}
}

// Kind reports which taxonomy sentinel err wraps. Errors that wrap none are [KindUnknown].
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrStorageFailure):
		return KindStorageFailure
	default:
		return KindUnknown
	}
}

// StorageError wraps an I/O or database failure as [ErrStorageFailure].
//
// The cause stays reachable through [errors.Unwrap] chains for logging, but Error() only reports the operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, ErrStorageFailure)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorageFailure, e.Err}
}

// Storage wraps err as a [StorageError] for op. A nil err stays nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
