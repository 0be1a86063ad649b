package domain

import (
	"errors"
	"fmt"
)

// Engine error sentinels. Use errors.Is against these; the concrete
// *SchemaError and *InvalidParameterError carry the details.
var (
	// ErrSchema is returned when a required input column is absent.
	ErrSchema = errors.New("schema error")

	// ErrInvalidParameter is returned when a window, threshold or horizon is out of range.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// SchemaError reports a missing or malformed required column. Fatal, not retried.
type SchemaError struct {
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: column %q: %s", e.Column, e.Reason)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// InvalidParameterError reports an out-of-range parameter. Caller-correctable.
type InvalidParameterError struct {
	Name   string
	Value  any
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Name, e.Value, e.Reason)
}

func (e *InvalidParameterError) Unwrap() error { return ErrInvalidParameter }
