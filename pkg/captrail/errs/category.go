// Package errs provides the capture pipeline's error taxonomy and a bounded
// retry helper.
//
// Only initialization failures are fatal: without a durable sink there is
// nothing to pipeline. Everything else degrades gracefully and is surfaced
// through counters and the system's last-error field, never through a panic
// on the producer path.
package errs

import (
	"errors"
	"fmt"
)

// Category classifies how a pipeline error is handled.
type Category int

const (
	// CategoryInitialization means lock or resource setup failed.
	// Fatal: the pipeline does not start.
	CategoryInitialization Category = iota

	// CategoryCaptureReject means the event queue was full.
	// Recoverable: counted, event dropped.
	CategoryCaptureReject

	// CategoryBufferOverflow means the aggregation buffer could not make
	// room even after a flush attempt. Recoverable: counted, entry dropped.
	CategoryBufferOverflow

	// CategoryWriteFailure means the write retry budget was exhausted.
	// Recoverable: counted; buffered data is retained for a later attempt.
	CategoryWriteFailure

	// CategoryRotationFailure means the rename or reopen during rotation
	// failed. Recoverable: logged, the writer continues against the old file.
	CategoryRotationFailure
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryInitialization:
		return "initialization"
	case CategoryCaptureReject:
		return "capture_reject"
	case CategoryBufferOverflow:
		return "buffer_overflow"
	case CategoryWriteFailure:
		return "write_failure"
	case CategoryRotationFailure:
		return "rotation_failure"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error is handled.
	Category Category

	// Attempts is the number of attempts made, when retrying applies.
	Attempts int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s)", e.Context, e.Err, e.Category)
	}
	return fmt.Sprintf("%s (category: %s)", e.Err, e.Category)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, context string) *CategorizedError {
	return &CategorizedError{Err: err, Category: category, Context: context}
}

// Initialization creates a fatal initialization error.
func Initialization(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryInitialization, context)
}

// CaptureReject creates a queue-full rejection error.
func CaptureReject(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryCaptureReject, context)
}

// BufferOverflow creates a buffer overflow error.
func BufferOverflow(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryBufferOverflow, context)
}

// WriteFailure creates a write failure error.
func WriteFailure(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryWriteFailure, context)
}

// RotationFailure creates a rotation failure error.
func RotationFailure(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryRotationFailure, context)
}

// Categorize determines how an error is handled. Errors that carry no
// category are treated as write failures, the most common transient case
// for a disk pipeline.
func Categorize(err error) Category {
	if err == nil {
		return CategoryInitialization // shouldn't happen, fail safe
	}
	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}
	return CategoryWriteFailure
}

// IsFatal reports whether the error halts the pipeline.
func IsFatal(err error) bool {
	return err != nil && Categorize(err) == CategoryInitialization
}
