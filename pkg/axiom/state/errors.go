package state

import (
	"errors"
	"fmt"
)

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("state store is closed")

// DatabaseConnectionError indicates a connection could not be obtained,
// including pool exhaustion.
type DatabaseConnectionError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *DatabaseConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("database connection: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("database connection: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *DatabaseConnectionError) Unwrap() error { return e.Err }

// DatabaseMigrationError indicates schema initialization failed. Migration
// failures are fatal at startup.
type DatabaseMigrationError struct {
	Version int
	Err     error
}

// Error implements the error interface.
func (e *DatabaseMigrationError) Error() string {
	if e.Version > 0 {
		return fmt.Sprintf("database migration v%d failed: %v", e.Version, e.Err)
	}
	return fmt.Sprintf("database migration failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *DatabaseMigrationError) Unwrap() error { return e.Err }

// QueryExecutionError indicates a query or statement failed at runtime.
type QueryExecutionError struct {
	Operation string
	Err       error
}

// Error implements the error interface.
func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryExecutionError) Unwrap() error { return e.Err }
