package dbmanager

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrConnectionNotFound is returned when a connection with the given name doesn't exist
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrInvalidConfiguration is returned when the configuration is invalid
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrConnectionClosed is returned when attempting to use a closed connection
	ErrConnectionClosed = errors.New("connection is closed")

	// ErrUnsupportedDriver is returned when the database driver is not supported
	ErrUnsupportedDriver = errors.New("unsupported database driver")

	// ErrNoDefaultConnection is returned when no default connection is configured
	ErrNoDefaultConnection = errors.New("no default connection configured")
)

// ConnectionError wraps errors that occur during connection operations
type ConnectionError struct {
	Name      string
	Operation string
	Err       error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection '%s' %s: %v", e.Name, e.Operation, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NewConnectionError creates a new ConnectionError
func NewConnectionError(name, operation string, err error) *ConnectionError {
	return &ConnectionError{Name: name, Operation: operation, Err: err}
}
