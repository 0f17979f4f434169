package model

import (
	"errors"
	"fmt"
)

// ValidationError marks malformed or missing caller input. Always
// caller-fixable; never retried automatically.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// NewValidationError creates a ValidationError with a display-safe reason.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError marks an unknown session, job, or record id.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// UpstreamFetchError marks a failed URL-analysis fetch. Recorded
// non-fatally; the pipeline continues with partial metadata.
type UpstreamFetchError struct {
	URL string
	Err error
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// PersistenceError marks a durable-store write failure. Propagated,
// since session state would otherwise diverge from the caller's belief.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// QualificationRejected is an expected, frequent outcome of the promotion
// qualifier. It carries a human-readable reason and is never treated as a
// system fault.
type QualificationRejected struct {
	Reason string
}

func (e *QualificationRejected) Error() string { return e.Reason }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsRejection reports whether err is (or wraps) a QualificationRejected.
func IsRejection(err error) bool {
	var qr *QualificationRejected
	return errors.As(err, &qr)
}
