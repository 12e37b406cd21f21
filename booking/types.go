/*
Package booking provides the capacity-constrained reservation core.

PURPOSE:
  Many concurrent actors claim a limited number of units against a shared
  resource (a scheduled time slot with a maximum participant count). This
  package guarantees that a slot is never over-booked, that a claimant
  never holds two live bookings on the same slot, and that cancellations
  release capacity deterministically.

KEY CONCEPTS IN THIS FILE (types.go):
  - Resource: The bookable parent entity (e.g. a volunteering event)
  - Slot:     A capacity-limited bookable unit belonging to a Resource
  - Booking:  A claim by one actor on one unit of a Slot's capacity
  - ActorID:  The claimant identity - validated elsewhere, trusted here

DESIGN PRINCIPLES:
  1. The durable store is the only shared state. Correctness must hold
     across independent server processes, so the atomic boundary is a
     store transaction, never an in-process lock.
  2. Slot.ReservedCount is a cached counter, not a source of truth. It
     must be re-derivable from the Booking set at any time (Reconcile).
  3. Status transitions are the only permitted Booking mutation.

SEE ALSO:
  - guard.go:   The atomic reserve/cancel algorithm
  - service.go: Orchestration exposed to the API layer
  - store.go:   Persistence contracts
*/
package booking

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ResourceID string
type SlotID string
type BookingID string
type ActorID string

func NewResourceID() ResourceID { return ResourceID(uuid.NewString()) }
func NewSlotID() SlotID         { return SlotID(uuid.NewString()) }
func NewBookingID() BookingID   { return BookingID(uuid.NewString()) }

// =============================================================================
// RESOURCE - Bookable parent entity
// =============================================================================

// Resource is the bookable parent entity owning one or more Slots.
// It is bookable iff Active is true. Deleting it cascades to its
// Slots and Bookings at the store boundary.
type Resource struct {
	ID          ResourceID
	OwnerID     ActorID
	Title       string
	Description string
	Location    string
	Category    string
	StartDate   time.Time
	EndDate     time.Time

	// SlotCapacity is the capacity policy inherited by generated Slots.
	SlotCapacity int

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// SLOT - Capacity-limited bookable unit
// =============================================================================

// Slot belongs to exactly one Resource. ReservedCount is the exact count
// of non-cancelled Bookings referencing this Slot; the store maintains it
// atomically with every booking mutation. Version increments on every
// counter write and guards optimistic check-and-set updates.
type Slot struct {
	ID         SlotID
	ResourceID ResourceID
	StartTime  time.Time
	EndTime    time.Time

	Capacity      int
	ReservedCount int
	Version       int64

	// Open caches ReservedCount < Capacity. The full derived is_open
	// flag also requires Resource.Active; the guard checks both.
	Open bool
}

// Remaining returns the number of unclaimed units.
func (s *Slot) Remaining() int {
	if r := s.Capacity - s.ReservedCount; r > 0 {
		return r
	}
	return 0
}

// IsFull reports whether every unit of capacity is claimed.
func (s *Slot) IsFull() bool { return s.ReservedCount >= s.Capacity }

// Duration returns the slot length.
func (s *Slot) Duration() time.Duration { return s.EndTime.Sub(s.StartTime) }

// =============================================================================
// BOOKING - One actor's claim on one unit of slot capacity
// =============================================================================

type BookingStatus string

const (
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Counts reports whether a booking in this status holds a capacity unit.
// Completed bookings keep their unit; only cancellation releases it.
func (s BookingStatus) Counts() bool { return s != StatusCancelled }

// Booking ties one claimant to exactly one Slot. Created only through
// the capacity guard; never hard-deleted except by resource cascade.
type Booking struct {
	ID         BookingID
	SlotID     SlotID
	ResourceID ResourceID
	ClaimantID ActorID
	Status     BookingStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// =============================================================================
// LEDGER ENTRY - Consistent read row for the aggregation reporter
// =============================================================================

// LedgerEntry is a booking joined with the slot it claims. The reporter
// derives all per-actor and per-resource counters from these rows.
type LedgerEntry struct {
	BookingID  BookingID
	ClaimantID ActorID
	ResourceID ResourceID
	SlotID     SlotID
	Status     BookingStatus
	SlotStart  time.Time
	SlotEnd    time.Time
	BookedAt   time.Time
	UpdatedAt  time.Time
}

// Repair records a reserved_count correction made by a reconcile pass.
type Repair struct {
	SlotID  SlotID
	Stored  int
	Derived int
}
