package imagestore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no image matches the id for the caller.
	ErrNotFound = errors.New("image not found")

	// ErrUserNotFound is returned when the caller identity cannot be resolved.
	ErrUserNotFound = errors.New("user not found")

	// ErrReadFailure is returned when an object body cannot be read in full.
	ErrReadFailure = errors.New("read object body")

	// ErrNameTaken is returned when a rename collides with another image
	// of the same user.
	ErrNameTaken = errors.New("image name already taken")

	// ErrInvalidArgument is returned for out-of-range paging or empty names.
	ErrInvalidArgument = errors.New("invalid argument")
)

// QueryError wraps a metadata store failure.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// ObjectStoreError wraps an object store failure.
type ObjectStoreError struct {
	Op  string
	Key string
	Err error
}

func (e *ObjectStoreError) Error() string {
	return fmt.Sprintf("object store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *ObjectStoreError) Unwrap() error { return e.Err }

func queryErr(op string, err error) error {
	return &QueryError{Op: op, Err: err}
}

func objectErr(op, key string, err error) error {
	return &ObjectStoreError{Op: op, Key: key, Err: err}
}
