package scheduling

import (
	"errors"
	"fmt"
)

// Sentinel errors callers match with errors.Is.
var (
	// ErrSlotConflict means another active appointment occupies the interval.
	ErrSlotConflict = errors.New("scheduling: slot already booked")
	// ErrSlotInPast means the requested start is not strictly in the future.
	ErrSlotInPast = errors.New("scheduling: slot is in the past")
	// ErrServiceInactive means the service exists but is not bookable.
	ErrServiceInactive = errors.New("scheduling: service inactive")
	// ErrReferenceExhausted means reference generation kept colliding.
	ErrReferenceExhausted = errors.New("scheduling: reference generation exhausted")
	// ErrNotFound means no appointment matches the given id or reference.
	ErrNotFound = errors.New("scheduling: appointment not found")

	// errDuplicateReference is the repository-internal signal that drives
	// the bounded regeneration loop in the booking engine.
	errDuplicateReference = errors.New("scheduling: duplicate reference")
)

// ValidationError reports a malformed or missing request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("scheduling: invalid %s: %s", e.Field, e.Message)
}

func validationErr(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// PriceOutOfRangeError reports an explicit price outside the service's
// inclusive price range.
type PriceOutOfRangeError struct {
	MinCents   int64
	MaxCents   int64
	GivenCents int64
}

func (e *PriceOutOfRangeError) Error() string {
	return fmt.Sprintf("scheduling: price %d outside range [%d, %d]", e.GivenCents, e.MinCents, e.MaxCents)
}

// IllegalTransitionError reports a transition attempt not in the lifecycle
// table. It marks a caller bug or a lost race, never swallowed silently.
type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("scheduling: illegal transition %s -> %s", e.From, e.To)
}
