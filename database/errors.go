package database

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned by operations issued before the connection is ready, or after
	// it failed.
	ErrNotReady = errors.New("database: connection is not ready")

	// ErrUnsupportedOperation matches every UnsupportedOperationError.
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

const insertRemovedMessage = "insert() method was removed, please use insertMany() or insertOne() instead"

// UnsupportedOperationError is returned by entry points that have been removed.
type UnsupportedOperationError struct {
	Op      string
	Message string
}

func (e *UnsupportedOperationError) Error() string {
	return e.Message
}

func (e *UnsupportedOperationError) Unwrap() error {
	return ErrUnsupportedOperation
}

// ConnectionError reports a failed initial connection. It is terminal, the database never
// becomes ready afterwards.
type ConnectionError struct {
	// URI is the connection string with any password redacted.
	URI string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("database: connect to %s: %v", e.URI, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
