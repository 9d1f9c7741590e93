// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidID       = errors.New("invalid ID")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrBackdated       = errors.New("timestamp precedes last recorded activity")

	// Concurrency errors
	ErrConflict = errors.New("concurrent modification detected")

	// Infrastructure errors
	ErrPersistence = errors.New("persistence failure")
	ErrUnavailable = errors.New("service unavailable")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progress", "achievement"
	Op      string // Operation that failed, e.g., "AwardXP"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Invalid is shorthand for an ErrInvalidInput domain error.
func Invalid(domain, op, format string, args ...any) *DomainError {
	return NewDomainError(domain, op, ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Persistence wraps a storage failure.
func Persistence(domain, op string, err error) *DomainError {
	return WrapError(domain, op, ErrPersistence, "storage call failed", err)
}

// Progress domain errors
var (
	ErrUserStatsNotFound = NewDomainError("progress", "Find", ErrNotFound, "user stats not found")
	ErrProgressNotFound  = NewDomainError("progress", "FindLesson", ErrNotFound, "lesson progress not found")
	ErrStatsVersionStale = NewDomainError("progress", "Save", ErrConflict, "user stats version is stale")
	ErrNegativeXP        = NewDomainError("progress", "Validate", ErrNegativeValue, "xp cannot be negative")
	ErrPenaltyTooLarge   = NewDomainError("progress", "Penalize", ErrInvalidInput, "penalty exceeds total xp")
	ErrEmptyUserID       = NewDomainError("progress", "Validate", ErrInvalidID, "user id is required")
	ErrEmptyLessonID     = NewDomainError("progress", "Validate", ErrInvalidID, "lesson id is required")
	ErrBackdatedActivity = NewDomainError("progress", "UpdateStreak", ErrBackdated, "activity date is before last activity")
)

// Achievement domain errors
var (
	ErrAchievementNotFound = NewDomainError("achievement", "Find", ErrNotFound, "achievement not found")
	ErrAchievementEarned   = NewDomainError("achievement", "Insert", ErrAlreadyExists, "achievement already earned")
	ErrDuplicateDefinition = NewDomainError("achievement", "Register", ErrAlreadyExists, "duplicate achievement id")
	ErrUnknownRuleKind     = NewDomainError("achievement", "Validate", ErrInvalidInput, "unknown rule kind")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsInvalidInput checks if the error is a validation error.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrBackdated)
}

// IsConflict checks if the error is an optimistic concurrency failure.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsPersistence checks if the error came from the storage collaborator.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrUnavailable)
}
