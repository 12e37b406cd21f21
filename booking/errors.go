/*
errors.go - Error taxonomy for the reservation core

PURPOSE:
  All expected rejection kinds in one place. Callers branch on these with
  errors.Is/errors.As; the core never returns formatted user-facing
  messages. Storage failures below this taxonomy are wrapped with %w and
  propagated unmodified - the transaction is guaranteed rolled back.

ERROR CATEGORIES:
  1. Capacity rejections  - SlotFull, SlotClosed, DuplicateBooking
  2. Concurrency          - Contention (retryable), VersionConflict (internal)
  3. Lookup/authorization - NotFound, Forbidden
  4. State machine        - InvalidTransition

USAGE:
  _, err := svc.Book(ctx, resourceID, slotID, claimant)
  if errors.Is(err, booking.ErrSlotFull) { ... }
*/
package booking

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrSlotFull is returned when every unit of a slot's capacity is
	// already claimed by non-cancelled bookings.
	ErrSlotFull = errors.New("slot full")

	// ErrSlotClosed is returned when the owning resource is inactive.
	ErrSlotClosed = errors.New("slot closed")

	// ErrDuplicateBooking is returned when the claimant already holds a
	// non-cancelled booking on the slot. Makes retried Book calls safe.
	ErrDuplicateBooking = errors.New("duplicate booking")

	// ErrContention is returned after a bounded number of optimistic
	// retries failed. Callers should treat it as retryable, not fatal.
	ErrContention = errors.New("contention on slot")

	// ErrVersionConflict signals a failed compare-and-set on the slot
	// counter. Internal: the guard retries it before surfacing
	// ErrContention. Store implementations return this from
	// AdjustReserved when the expected version no longer matches.
	ErrVersionConflict = errors.New("slot version conflict")

	// ErrNotFound is returned for an unknown resource, slot, or booking.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the authorization collaborator
	// declines the caller.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition is returned for a disallowed status change,
	// e.g. cancelling an already-cancelled booking.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// SlotFullError reports capacity exhaustion on a specific slot.
type SlotFullError struct {
	SlotID   SlotID
	Capacity int
}

func (e *SlotFullError) Error() string {
	return fmt.Sprintf("slot %s full: capacity %d exhausted", e.SlotID, e.Capacity)
}

func (e *SlotFullError) Unwrap() error { return ErrSlotFull }

// SlotClosedError reports a booking attempt against an inactive resource.
type SlotClosedError struct {
	SlotID     SlotID
	ResourceID ResourceID
}

func (e *SlotClosedError) Error() string {
	return fmt.Sprintf("slot %s closed: resource %s is not active", e.SlotID, e.ResourceID)
}

func (e *SlotClosedError) Unwrap() error { return ErrSlotClosed }

// DuplicateBookingError reports an existing live booking for the pair.
type DuplicateBookingError struct {
	ClaimantID ActorID
	SlotID     SlotID
}

func (e *DuplicateBookingError) Error() string {
	return fmt.Sprintf("claimant %s already holds a booking on slot %s", e.ClaimantID, e.SlotID)
}

func (e *DuplicateBookingError) Unwrap() error { return ErrDuplicateBooking }

// ForbiddenError reports a declined authorization check.
type ForbiddenError struct {
	ActorID    ActorID
	ResourceID ResourceID
	Reason     string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("actor %s not eligible for resource %s: %s", e.ActorID, e.ResourceID, e.Reason)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// TransitionError reports a disallowed booking status change.
type TransitionError struct {
	BookingID BookingID
	From      BookingStatus
	To        BookingStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("booking %s: cannot transition %s -> %s", e.BookingID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the operation might succeed on resend.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrContention) || errors.Is(err, ErrVersionConflict)
}

// IsClientError returns true for expected rejections the caller must
// handle, as opposed to storage failures.
func IsClientError(err error) bool {
	return errors.Is(err, ErrSlotFull) ||
		errors.Is(err, ErrSlotClosed) ||
		errors.Is(err, ErrDuplicateBooking) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
