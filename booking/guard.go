/*
guard.go - The capacity guard: atomic check-and-reserve

PURPOSE:
  TryReserve is the single operation allowed to create bookings and the
  only writer of slot counters (together with Cancel). For any slot, the
  number of committed confirmed bookings never exceeds capacity, no
  matter how many TryReserve calls race - this is the load-bearing
  correctness property of the whole core.

ALGORITHM (one WithTx boundary per attempt):
  1. Re-read the slot and its resource as of this transaction.
  2. Reject SlotClosed if the resource is inactive.
  3. Reject SlotFull if reserved_count >= capacity.
  4. Reject DuplicateBooking if the claimant already holds a live
     booking - checked inside the same boundary as the insert, so no
     second race window exists. The store's unique constraint backstops
     this check.
  5. Insert the confirmed booking and compare-and-set the counter +1,
     flipping the open flag if the increment reaches capacity.
  6. A version conflict at commit is retried with backoff a bounded
     number of times, then surfaced as ErrContention.

  Cancel runs the mirror image: status flip and counter decrement in one
  indivisible operation relative to concurrent TryReserve calls.
*/
package booking

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// RetryPolicy bounds optimistic retries on slot version conflicts.
type RetryPolicy struct {
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy is tuned for brief row-level contention.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseBackoff: 10 * time.Millisecond, MaxBackoff: 200 * time.Millisecond}
}

// backoff returns the jittered wait before the given retry attempt.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BaseBackoff << uint(attempt)
	if d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	// Full jitter: anywhere in (0, d].
	return time.Duration(rand.Int63n(int64(d))) + 1
}

// Guard performs atomic reservations against a transactional store.
type Guard struct {
	store TxStore
	retry RetryPolicy
	clock func() time.Time
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithRetryPolicy overrides the contention retry budget.
func WithRetryPolicy(p RetryPolicy) GuardOption {
	return func(g *Guard) { g.retry = p }
}

// WithGuardClock overrides the time source (tests).
func WithGuardClock(clock func() time.Time) GuardOption {
	return func(g *Guard) { g.clock = clock }
}

// NewGuard creates a capacity guard over the given store.
func NewGuard(store TxStore, opts ...GuardOption) *Guard {
	g := &Guard{
		store: store,
		retry: DefaultRetryPolicy(),
		clock: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TryReserve atomically claims one unit of the slot's capacity for the
// claimant. On success the confirmed booking is durably committed.
func (g *Guard) TryReserve(ctx context.Context, slotID SlotID, claimant ActorID) (*Booking, error) {
	var booked *Booking

	err := g.withRetry(ctx, fmt.Sprintf("slot %s", slotID), func() error {
		return g.store.WithTx(ctx, func(tx Store) error {
			slot, err := tx.GetSlot(ctx, slotID)
			if err != nil {
				return err
			}
			res, err := tx.GetResource(ctx, slot.ResourceID)
			if err != nil {
				return err
			}

			if !res.Active {
				return &SlotClosedError{SlotID: slot.ID, ResourceID: res.ID}
			}
			if slot.IsFull() {
				return &SlotFullError{SlotID: slot.ID, Capacity: slot.Capacity}
			}
			held, err := tx.HasActiveBooking(ctx, claimant, slot.ID)
			if err != nil {
				return err
			}
			if held {
				return &DuplicateBookingError{ClaimantID: claimant, SlotID: slot.ID}
			}

			now := g.clock()
			b := Booking{
				ID:         NewBookingID(),
				SlotID:     slot.ID,
				ResourceID: slot.ResourceID,
				ClaimantID: claimant,
				Status:     StatusConfirmed,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := tx.InsertBooking(ctx, b); err != nil {
				return err
			}
			if err := tx.AdjustReserved(ctx, slot.ID, +1, slot.Version); err != nil {
				return err
			}
			booked = &b
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return booked, nil
}

// Cancel transitions a confirmed booking to cancelled and releases its
// capacity unit. Returns the updated booking and whether the slot
// re-opened (it had been full).
func (g *Guard) Cancel(ctx context.Context, bookingID BookingID) (*Booking, bool, error) {
	var (
		cancelled *Booking
		reopened  bool
	)

	err := g.withRetry(ctx, fmt.Sprintf("booking %s", bookingID), func() error {
		return g.store.WithTx(ctx, func(tx Store) error {
			b, err := tx.GetBooking(ctx, bookingID)
			if err != nil {
				return err
			}
			if b.Status != StatusConfirmed {
				return &TransitionError{BookingID: b.ID, From: b.Status, To: StatusCancelled}
			}
			slot, err := tx.GetSlot(ctx, b.SlotID)
			if err != nil {
				return err
			}

			if err := tx.UpdateBookingStatus(ctx, b.ID, StatusConfirmed, StatusCancelled); err != nil {
				return err
			}
			if err := tx.AdjustReserved(ctx, slot.ID, -1, slot.Version); err != nil {
				return err
			}

			reopened = slot.IsFull() // was full before the decrement
			b.Status = StatusCancelled
			b.UpdatedAt = g.clock()
			cancelled = b
			return nil
		})
	})
	if err != nil {
		return nil, false, err
	}
	return cancelled, reopened, nil
}

// Complete marks a confirmed booking completed. The capacity unit stays
// claimed: reserved_count counts all non-cancelled bookings.
func (g *Guard) Complete(ctx context.Context, bookingID BookingID) (*Booking, error) {
	var completed *Booking

	err := g.store.WithTx(ctx, func(tx Store) error {
		b, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != StatusConfirmed {
			return &TransitionError{BookingID: b.ID, From: b.Status, To: StatusCompleted}
		}
		if err := tx.UpdateBookingStatus(ctx, b.ID, StatusConfirmed, StatusCompleted); err != nil {
			return err
		}
		b.Status = StatusCompleted
		b.UpdatedAt = g.clock()
		completed = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// Reconcile recomputes every slot's reserved_count from its booking set
// and repairs drift. A consistent ledger yields no repairs.
func (g *Guard) Reconcile(ctx context.Context) ([]Repair, error) {
	rs, ok := g.store.(ReconcileStore)
	if !ok {
		return nil, fmt.Errorf("store %T does not support reconciliation", g.store)
	}
	return rs.ReconcileSlots(ctx)
}

// withRetry runs op, retrying version conflicts with backoff until the
// budget is exhausted, then surfaces ErrContention.
func (g *Guard) withRetry(ctx context.Context, target string, op func() error) error {
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil || !errors.Is(err, ErrVersionConflict) {
			return err
		}
		if attempt >= g.retry.MaxRetries {
			return fmt.Errorf("%w: %s still contended after %d attempts", ErrContention, target, attempt+1)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.retry.backoff(attempt)):
		}
	}
}
