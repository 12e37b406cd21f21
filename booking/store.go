/*
store.go - Persistence contracts for the reservation ledger

PURPOSE:
  Defines the interface between the reservation core and the database.
  The store enforces the structural invariants at the storage boundary:
  - At most one non-cancelled booking per (claimant, slot), surfaced as
    ErrDuplicateBooking (a distinct kind, not a generic failure).
  - Deleting a resource cascades to its slots and bookings in one
    atomic operation - never ad-hoc multi-statement deletes by callers.
  - AdjustReserved is a durable compare-and-set on the slot counter,
    guarded by the slot version.

ATOMIC BOUNDARY:
  TxStore.WithTx is the transaction boundary the capacity guard opens.
  Everything the guard reads inside fn is as-of that transaction; values
  read before the boundary opened must never be trusted.

IMPLEMENTATIONS:
  - store/sqlite:   SQLite (WAL), production single-node
  - store/postgres: PostgreSQL via pgx, row-locked multi-process
  - booking/store:  In-memory, tests and dev

SEE ALSO:
  - guard.go: The only writer of bookings and counters
*/
package booking

import "context"

// Store handles persistence of resources, slots, and bookings.
type Store interface {
	// Resources.
	SaveResource(ctx context.Context, res Resource) error
	GetResource(ctx context.Context, id ResourceID) (*Resource, error)
	ListResourcesByOwner(ctx context.Context, owner ActorID) ([]Resource, error)
	SetResourceActive(ctx context.Context, id ResourceID, active bool) error
	// DeleteResource removes the resource and cascades to its slots and
	// bookings atomically.
	DeleteResource(ctx context.Context, id ResourceID) error

	// Slots.
	SaveSlot(ctx context.Context, slot Slot) error
	GetSlot(ctx context.Context, id SlotID) (*Slot, error)
	// ListSlots returns the resource's slots ordered by start time.
	// With onlyOpen, only slots with remaining capacity on an active
	// resource are returned.
	ListSlots(ctx context.Context, resourceID ResourceID, onlyOpen bool) ([]Slot, error)

	// Bookings.
	// InsertBooking returns ErrDuplicateBooking if the claimant already
	// holds a non-cancelled booking on the slot (unique constraint).
	InsertBooking(ctx context.Context, b Booking) error
	GetBooking(ctx context.Context, id BookingID) (*Booking, error)
	// ListBookings filters by claimant and, when status is non-nil, by status.
	ListBookings(ctx context.Context, claimant ActorID, status *BookingStatus) ([]Booking, error)
	HasActiveBooking(ctx context.Context, claimant ActorID, slotID SlotID) (bool, error)
	// UpdateBookingStatus transitions from -> to. Returns ErrNotFound for
	// an unknown booking and ErrInvalidTransition if the current status
	// is not from.
	UpdateBookingStatus(ctx context.Context, id BookingID, from, to BookingStatus) error

	// AdjustReserved applies delta (+1 or -1) to the slot's counter iff
	// the stored version equals expectedVersion, bumping the version and
	// recomputing the cached open flag in the same write. Returns
	// ErrVersionConflict when the version moved underneath the caller.
	AdjustReserved(ctx context.Context, slotID SlotID, delta int, expectedVersion int64) error
}

// TxStore wraps Store with transaction support. If fn returns an error
// the transaction rolls back and no partial state remains.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}

// ReconcileStore repairs cached counters from the booking set.
type ReconcileStore interface {
	// ReconcileSlots recomputes every slot's reserved_count from its
	// non-cancelled bookings. On a consistent ledger it returns no
	// repairs and changes nothing.
	ReconcileSlots(ctx context.Context) ([]Repair, error)
}

// LedgerReader provides the consistent snapshot reads the aggregation
// reporter derives counters from. A single call is one read view; it
// must never block writers.
type LedgerReader interface {
	LedgerEntries(ctx context.Context) ([]LedgerEntry, error)
	LedgerEntriesByClaimant(ctx context.Context, claimant ActorID) ([]LedgerEntry, error)
}
