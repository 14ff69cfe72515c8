package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors
var (
	ErrValidation                = errors.New("validation failed")
	ErrSlotConflict              = errors.New("slot already taken")
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
	ErrStorageUnavailable        = errors.New("storage unavailable")
	ErrGatewayUnavailable        = errors.New("payment gateway unavailable")
	ErrUnauthorized              = errors.New("unauthorized")
	ErrBookingNotFound           = errors.New("booking not found")
	ErrInvalidTransition         = errors.New("invalid booking transition")

	// ErrHoldExpired is an ErrInvalidTransition: payment arrived after the hold lapsed
	ErrHoldExpired = fmt.Errorf("%w: hold expired before payment", ErrInvalidTransition)

	// ErrPricingNotConfigured means no pricing record has been written yet
	ErrPricingNotConfigured = errors.New("pricing not configured")

	// ErrVersionConflict signals a lost compare-and-swap on a day ledger
	ErrVersionConflict = errors.New("day ledger changed concurrently")
)

// ValidationError names the offending field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// SlotConflictError lists the requested slots that are no longer free.
// It carries no information about who holds them.
type SlotConflictError struct {
	SlotIDs []string
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("slots unavailable: %s", strings.Join(e.SlotIDs, ", "))
}

func (e *SlotConflictError) Unwrap() error {
	return ErrSlotConflict
}

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrBookingNotFound)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflictError checks if the error is a slot conflict
func IsConflictError(err error) bool {
	return errors.Is(err, ErrSlotConflict)
}

// IsTransitionError checks if the error is a rejected state transition
func IsTransitionError(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsRetryableError reports errors the caller may retry unchanged
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrGatewayUnavailable)
}

// ConflictingSlots extracts the slot ids of a SlotConflictError
func ConflictingSlots(err error) ([]string, bool) {
	var ce *SlotConflictError
	if errors.As(err, &ce) {
		return ce.SlotIDs, true
	}
	return nil, false
}

// StorageError wraps an infrastructure failure as ErrStorageUnavailable
func StorageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}

// ReferenceError attaches the booking reference customers quote to support
type ReferenceError struct {
	Reference string
	Err       error
}

func (e *ReferenceError) Error() string {
	return e.Err.Error()
}

func (e *ReferenceError) Unwrap() error {
	return e.Err
}

// WithReference annotates err with a booking reference
func WithReference(err error, reference string) error {
	if err == nil || reference == "" {
		return err
	}
	return &ReferenceError{Reference: reference, Err: err}
}

// ReferenceOf returns the booking reference carried by err, if any
func ReferenceOf(err error) string {
	var re *ReferenceError
	if errors.As(err, &re) {
		return re.Reference
	}
	return ""
}
