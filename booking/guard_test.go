package booking_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volunteerhub/booking-engine/booking"
	"github.com/volunteerhub/booking-engine/booking/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newGuardFixture(t *testing.T, capacity int) (*booking.Guard, *store.Memory, booking.SlotID) {
	t.Helper()

	mem := store.NewMemory()
	ctx := context.Background()

	res := booking.Resource{
		ID:           booking.NewResourceID(),
		OwnerID:      "owner-1",
		Title:        "Beach Cleanup",
		StartDate:    time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		SlotCapacity: capacity,
		Active:       true,
	}
	require.NoError(t, mem.SaveResource(ctx, res))

	slot := booking.Slot{
		ID:         booking.NewSlotID(),
		ResourceID: res.ID,
		StartTime:  time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC),
		EndTime:    time.Date(2025, time.June, 1, 11, 0, 0, 0, time.UTC),
		Capacity:   capacity,
		Open:       true,
	}
	require.NoError(t, mem.SaveSlot(ctx, slot))

	return booking.NewGuard(mem), mem, slot.ID
}

// =============================================================================
// RESERVATION TESTS
// =============================================================================

func TestGuard_TryReserve_Succeeds(t *testing.T) {
	// GIVEN: An open slot with capacity 2
	// WHEN: A claimant reserves
	// THEN: A confirmed booking commits and the counter goes to 1

	guard, mem, slotID := newGuardFixture(t, 2)
	ctx := context.Background()

	b, err := guard.TryReserve(ctx, slotID, "vol-1")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, b.Status)
	assert.Equal(t, booking.ActorID("vol-1"), b.ClaimantID)

	slot, err := mem.GetSlot(ctx, slotID)
	require.NoError(t, err)
	assert.Equal(t, 1, slot.ReservedCount)
	assert.True(t, slot.Open)
}

func TestGuard_TryReserve_SlotFull(t *testing.T) {
	// GIVEN: A slot filled to capacity
	// WHEN: Another claimant tries to reserve
	// THEN: SlotFull, and the counter never exceeds capacity

	guard, mem, slotID := newGuardFixture(t, 1)
	ctx := context.Background()

	_, err := guard.TryReserve(ctx, slotID, "vol-1")
	require.NoError(t, err)

	_, err = guard.TryReserve(ctx, slotID, "vol-2")
	assert.ErrorIs(t, err, booking.ErrSlotFull)

	var fullErr *booking.SlotFullError
	assert.ErrorAs(t, err, &fullErr)
	assert.Equal(t, 1, fullErr.Capacity)

	slot, err := mem.GetSlot(ctx, slotID)
	require.NoError(t, err)
	assert.Equal(t, 1, slot.ReservedCount)
	assert.False(t, slot.Open)
}

func TestGuard_TryReserve_DuplicateClaim(t *testing.T) {
	// GIVEN: A claimant holding a live booking on a slot with spare capacity
	// WHEN: The same claimant books the same slot again
	// THEN: DuplicateBooking, and the counter is untouched

	guard, mem, slotID := newGuardFixture(t, 5)
	ctx := context.Background()

	_, err := guard.TryReserve(ctx, slotID, "vol-1")
	require.NoError(t, err)

	_, err = guard.TryReserve(ctx, slotID, "vol-1")
	assert.ErrorIs(t, err, booking.ErrDuplicateBooking)

	slot, err := mem.GetSlot(ctx, slotID)
	require.NoError(t, err)
	assert.Equal(t, 1, slot.ReservedCount)
}

func TestGuard_TryReserve_RebookAfterCancel(t *testing.T) {
	// GIVEN: A claimant whose booking was cancelled
	// WHEN: They book the same slot again
	// THEN: The new claim succeeds; cancelled rows don't block re-booking

	guard, _, slotID := newGuardFixture(t, 1)
	ctx := context.Background()

	b, err := guard.TryReserve(ctx, slotID, "vol-1")
	require.NoError(t, err)

	_, _, err = guard.Cancel(ctx, b.ID)
	require.NoError(t, err)

	_, err = guard.TryReserve(ctx, slotID, "vol-1")
	assert.NoError(t, err)
}

func TestGuard_TryReserve_InactiveResource(t *testing.T) {
	// GIVEN: A deactivated resource whose slot still has spare capacity
	// WHEN: A claimant tries to reserve
	// THEN: SlotClosed regardless of remaining capacity

	guard, mem, slotID := newGuardFixture(t, 5)
	ctx := context.Background()

	slot, err := mem.GetSlot(ctx, slotID)
	require.NoError(t, err)
	require.NoError(t, mem.SetResourceActive(ctx, slot.ResourceID, false))

	_, err = guard.TryReserve(ctx, slotID, "vol-1")
	assert.ErrorIs(t, err, booking.ErrSlotClosed)
	assert.True(t, booking.IsClientError(err))
}

func TestGuard_TryReserve_UnknownSlot(t *testing.T) {
	guard, _, _ := newGuardFixture(t, 1)

	_, err := guard.TryReserve(context.Background(), "no-such-slot", "vol-1")
	assert.True(t, booking.IsNotFound(err))
}

// =============================================================================
// CONCURRENCY INVARIANT
// =============================================================================

func TestGuard_ConcurrentReservations_NeverOverbook(t *testing.T) {
	// GIVEN: A slot with capacity 3
	// WHEN: 10 distinct claimants reserve concurrently
	// THEN: Exactly 3 succeed and 7 get SlotFull; the committed state is
	//       consistent and a reconcile pass finds nothing to repair

	const capacity, claimants = 3, 10

	guard, mem, slotID := newGuardFixture(t, capacity)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		nBooked  int
		nFull    int
		failures []error
	)

	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := guard.TryReserve(ctx, slotID, booking.ActorID(fmt.Sprintf("vol-%d", n)))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				nBooked++
			case errors.Is(err, booking.ErrSlotFull):
				nFull++
			default:
				failures = append(failures, err)
			}
		}(i)
	}
	wg.Wait()

	require.Empty(t, failures)
	assert.Equal(t, capacity, nBooked)
	assert.Equal(t, claimants-capacity, nFull)

	slot, err := mem.GetSlot(ctx, slotID)
	require.NoError(t, err)
	assert.Equal(t, capacity, slot.ReservedCount)
	assert.False(t, slot.Open)

	repairs, err := guard.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, repairs, "counter should already match the booking rows")
}

// =============================================================================
// CANCEL AND COMPLETE
// =============================================================================

func TestGuard_Cancel_ReopensFullSlot(t *testing.T) {
	// GIVEN: A slot booked to capacity
	// WHEN: One booking is cancelled
	// THEN: The slot reports reopened and a new claimant can book

	guard, mem, slotID := newGuardFixture(t, 2)
	ctx := context.Background()

	b1, err := guard.TryReserve(ctx, slotID, "vol-1")
	require.NoError(t, err)
	_, err = guard.TryReserve(ctx, slotID, "vol-2")
	require.NoError(t, err)

	cancelled, reopened, err := guard.Cancel(ctx, b1.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, cancelled.Status)
	assert.True(t, reopened)

	slot, err := mem.GetSlot(ctx, slotID)
	require.NoError(t, err)
	assert.Equal(t, 1, slot.ReservedCount)
	assert.True(t, slot.Open)

	_, err = guard.TryReserve(ctx, slotID, "vol-3")
	assert.NoError(t, err)
}

func TestGuard_Cancel_NotFullSlot_NotReopened(t *testing.T) {
	guard, _, slotID := newGuardFixture(t, 3)
	ctx := context.Background()

	b, err := guard.TryReserve(ctx, slotID, "vol-1")
	require.NoError(t, err)

	_, reopened, err := guard.Cancel(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, reopened, "slot was never full")
}

func TestGuard_Cancel_AlreadyCancelled(t *testing.T) {
	// GIVEN: A cancelled booking
	// WHEN: Cancelling again
	// THEN: TransitionError, and the counter is not decremented twice

	guard, mem, slotID := newGuardFixture(t, 2)
	ctx := context.Background()

	b, err := guard.TryReserve(ctx, slotID, "vol-1")
	require.NoError(t, err)

	_, _, err = guard.Cancel(ctx, b.ID)
	require.NoError(t, err)

	_, _, err = guard.Cancel(ctx, b.ID)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)

	var trErr *booking.TransitionError
	assert.ErrorAs(t, err, &trErr)
	assert.Equal(t, booking.StatusCancelled, trErr.From)

	slot, err := mem.GetSlot(ctx, slotID)
	require.NoError(t, err)
	assert.Equal(t, 0, slot.ReservedCount)
}

func TestGuard_Complete_KeepsCapacityUnit(t *testing.T) {
	// GIVEN: A confirmed booking on a full slot
	// WHEN: The booking completes
	// THEN: The slot stays full; completion is not a release

	guard, mem, slotID := newGuardFixture(t, 1)
	ctx := context.Background()

	b, err := guard.TryReserve(ctx, slotID, "vol-1")
	require.NoError(t, err)

	done, err := guard.Complete(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCompleted, done.Status)

	slot, err := mem.GetSlot(ctx, slotID)
	require.NoError(t, err)
	assert.Equal(t, 1, slot.ReservedCount)
	assert.False(t, slot.Open)

	_, _, err = guard.Cancel(ctx, b.ID)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)
}

// =============================================================================
// CONTENTION AND RETRY
// =============================================================================

// conflictingStore forces version conflicts on AdjustReserved for a set
// number of attempts, then behaves normally.
type conflictingStore struct {
	*store.Memory
	mu    sync.Mutex
	fails int
}

func (c *conflictingStore) WithTx(ctx context.Context, fn func(booking.Store) error) error {
	return c.Memory.WithTx(ctx, func(tx booking.Store) error {
		return fn(&conflictingTx{Store: tx, parent: c})
	})
}

type conflictingTx struct {
	booking.Store
	parent *conflictingStore
}

func (c *conflictingTx) AdjustReserved(ctx context.Context, slotID booking.SlotID, delta int, expectedVersion int64) error {
	c.parent.mu.Lock()
	inject := c.parent.fails > 0
	if inject {
		c.parent.fails--
	}
	c.parent.mu.Unlock()

	if inject {
		return booking.ErrVersionConflict
	}
	return c.Store.AdjustReserved(ctx, slotID, delta, expectedVersion)
}

func newConflictFixture(t *testing.T, fails int) (*booking.Guard, booking.SlotID) {
	t.Helper()

	_, mem, slotID := newGuardFixture(t, 5)
	flaky := &conflictingStore{Memory: mem, fails: fails}
	guard := booking.NewGuard(flaky, booking.WithRetryPolicy(booking.RetryPolicy{
		MaxRetries:  3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}))
	return guard, slotID
}

func TestGuard_TryReserve_RecoversFromBriefContention(t *testing.T) {
	// GIVEN: A store that conflicts twice, within the retry budget
	// WHEN: A claimant reserves
	// THEN: The reservation succeeds on a later attempt

	guard, slotID := newConflictFixture(t, 2)

	b, err := guard.TryReserve(context.Background(), slotID, "vol-1")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, b.Status)
}

func TestGuard_TryReserve_PersistentContention(t *testing.T) {
	// GIVEN: A store that conflicts on every attempt
	// WHEN: A claimant reserves
	// THEN: ErrContention after the budget, flagged retryable, and no
	//       partial state survives the rolled-back attempts

	guard, slotID := newConflictFixture(t, 100)
	ctx := context.Background()

	_, err := guard.TryReserve(ctx, slotID, "vol-1")
	assert.ErrorIs(t, err, booking.ErrContention)
	assert.True(t, booking.IsRetryable(err))

	repairs, err := guard.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, repairs)
}

func TestGuard_TryReserve_ContextCancelledDuringBackoff(t *testing.T) {
	// GIVEN: Persistent conflicts and a context that is already cancelled
	// WHEN: The guard would back off before retrying
	// THEN: The context error surfaces instead of further attempts

	guard, slotID := newConflictFixture(t, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := guard.TryReserve(ctx, slotID, "vol-1")
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestGuard_Reconcile_RepairsDriftedCounter(t *testing.T) {
	// GIVEN: A slot whose cached counter drifted from its booking rows
	// WHEN: Reconcile runs
	// THEN: The counter is re-derived and the repair is reported

	guard, mem, slotID := newGuardFixture(t, 3)
	ctx := context.Background()

	_, err := guard.TryReserve(ctx, slotID, "vol-1")
	require.NoError(t, err)

	// Corrupt the cached counter directly.
	slot, err := mem.GetSlot(ctx, slotID)
	require.NoError(t, err)
	require.NoError(t, mem.AdjustReserved(ctx, slotID, +2, slot.Version))

	repairs, err := guard.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, repairs, 1)
	assert.Equal(t, slotID, repairs[0].SlotID)
	assert.Equal(t, 3, repairs[0].Stored)
	assert.Equal(t, 1, repairs[0].Derived)

	repaired, err := mem.GetSlot(ctx, slotID)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired.ReservedCount)
	assert.True(t, repaired.Open)
}
