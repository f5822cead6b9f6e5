package deck

import (
	"fmt"
	"time"
)

// ServiceError reports a failed call to the completion service.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("completion service failed during %s", e.Op)
	}
	return fmt.Sprintf("completion service failed during %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// ExtractionError reports a reference document that could not be turned into text.
type ExtractionError struct {
	Format string
	Err    error
}

func (e *ExtractionError) Error() string {
	format := e.Format
	if format == "" {
		format = "document"
	}
	if e.Err == nil {
		return fmt.Sprintf("extracting text from %s failed", format)
	}
	return fmt.Sprintf("extracting text from %s failed: %v", format, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// ValidationError reports input or model output that violates the deck contract.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TimeoutError reports a single completion call that exceeded its deadline.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("completion call for %s timed out after %s", e.Op, e.After)
}

// Timeout lets callers treat the error like a net.Error timeout.
func (e *TimeoutError) Timeout() bool {
	return true
}
