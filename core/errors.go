package core

import (
	"errors"
	"fmt"
	"strings"
)

// ConnectionError means the query engine could not be reached or configured.
// It is never retried by this package.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("connection failed: %v", e.Err)
	}
	return fmt.Sprintf("connection to %s failed: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// UnknownTableError is returned for table names outside the registered set.
type UnknownTableError struct {
	Table     string
	Available []string
}

func (e *UnknownTableError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unknown table %q", e.Table)
	}
	return fmt.Sprintf("unknown table %q (available: %s)", e.Table, strings.Join(e.Available, ", "))
}

// RemoteTimeoutError is returned when an engine call exceeds its deadline.
type RemoteTimeoutError struct {
	Op  string
	Err error
}

func (e *RemoteTimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Op, e.Err)
}

func (e *RemoteTimeoutError) Unwrap() error { return e.Err }

// QueryExecutionError carries the engine diagnostic verbatim.
type QueryExecutionError struct {
	SQL string
	Err error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *QueryExecutionError) Unwrap() error { return e.Err }

// WriteError describes a failed ingestion write for a single source file.
type WriteError struct {
	Source string
	Table  string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s into %s: %v", e.Source, e.Table, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ValidationError indicates invalid caller input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrorKind returns a stable short name for the error's kind, or "internal".
func ErrorKind(err error) string {
	var (
		connErr    *ConnectionError
		tableErr   *UnknownTableError
		timeoutErr *RemoteTimeoutError
		queryErr   *QueryExecutionError
		writeErr   *WriteError
		validErr   *ValidationError
	)
	switch {
	case errors.As(err, &tableErr):
		return "unknown_table"
	case errors.As(err, &validErr):
		return "validation"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &connErr):
		return "connection"
	case errors.As(err, &queryErr):
		return "query_execution"
	case errors.As(err, &writeErr):
		return "write"
	default:
		return "internal"
	}
}
