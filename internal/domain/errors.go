package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every typed error below matches exactly one of these with errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrInvalidState     = errors.New("invalid state transition")
	ErrConflict         = errors.New("concurrent modification")
	ErrNoApplicableRate = errors.New("no applicable billing rate")
	ErrNoBillableData   = errors.New("no billable data")
	ErrNotFound         = errors.New("not found")
)

// ValidationError is returned for malformed input and entry rule violations.
// The user must correct the input; it is never retried.
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Rule == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Validationf builds a ValidationError for the given rule.
func Validationf(rule, format string, args ...any) *ValidationError {
	return &ValidationError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// InvalidStateError names the state a document was in and the transition that was refused.
type InvalidStateError struct {
	Document  string
	Current   string
	Attempted string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s in state %q cannot %s", e.Document, e.Current, e.Attempted)
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

// ConflictError means another writer changed the document first. Callers refetch and retry.
type ConflictError struct {
	Document string
	ID       string
	Message  string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %s", e.Document, e.ID, e.Message)
	}
	return fmt.Sprintf("%s %s was modified concurrently, refetch and retry", e.Document, e.ID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// NoApplicableRateError is returned when no scope yields a rate for the date.
type NoApplicableRateError struct {
	UserID string
	AsOf   string
}

func (e *NoApplicableRateError) Error() string {
	return fmt.Sprintf("no billing rate applies to user %q on %s", e.UserID, e.AsOf)
}

func (e *NoApplicableRateError) Is(target error) bool { return target == ErrNoApplicableRate }

// NoBillableDataError is returned when an invoice run finds nothing to bill.
type NoBillableDataError struct {
	ClientID string
	Period   Period
}

func (e *NoBillableDataError) Error() string {
	return fmt.Sprintf("no unbilled frozen entries for client %q between %s and %s",
		e.ClientID, e.Period.From.Format(DateLayout), e.Period.To.Format(DateLayout))
}

func (e *NoBillableDataError) Is(target error) bool { return target == ErrNoBillableData }

// NotFoundError is returned by stores for missing or soft-deleted documents.
type NotFoundError struct {
	Document string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Document, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
