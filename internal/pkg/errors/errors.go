package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError rejects bad input before any pipeline stage runs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// ConversionError wraps a conversion-provider failure for one source file.
type ConversionError struct {
	Source string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("pdf conversion of %s failed: %v", e.Source, e.Err)
}
func (e *ConversionError) Unwrap() error { return e.Err }

// ExtractionError wraps an extraction-provider failure, including a response
// that does not match the expected structured shape.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("summary extraction failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("summary extraction failed: %s", e.Reason)
}
func (e *ExtractionError) Unwrap() error { return e.Err }

// RenderError wraps a document rendering failure.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string { return fmt.Sprintf("document rendering failed: %v", e.Err) }
func (e *RenderError) Unwrap() error { return e.Err }

// DeliveryError wraps a mail transport failure. It occurs after the report is
// persisted and is surfaced as a degraded success, never a rollback.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string { return fmt.Sprintf("email delivery failed: %v", e.Err) }
func (e *DeliveryError) Unwrap() error { return e.Err }

// StoreError wraps an artifact or index persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("report store: %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// NotFoundError reports an unknown jobId or fileId on lookup.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.ID) }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }
