package booking_test

import (
	"context"
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

// recordingNotifier collects dispatched events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []booking.Event
}

func (n *recordingNotifier) Notify(_ context.Context, e booking.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) snapshot() []booking.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]booking.Event(nil), n.events...)
}

func (n *recordingNotifier) kinds() []booking.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]booking.EventKind, len(n.events))
	for i, e := range n.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func (n *recordingNotifier) waitFor(t *testing.T, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		n.mu.Lock()
		defer n.mu.Unlock()
		return len(n.events) >= want
	}, time.Second, 5*time.Millisecond)
}

type serviceFixture struct {
	svc      *booking.Service
	mem      *store.Memory
	notifier *recordingNotifier
	resource *booking.Resource
	slots    []booking.Slot
}

// newServiceFixture builds a service over the in-memory store with
// vol-* as volunteers and org-1 as the organizer owning one resource.
func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	mem := store.NewMemory()
	notifier := &recordingNotifier{}

	dir := booking.StaticDirectory{
		"vol-1": booking.RoleVolunteer,
		"vol-2": booking.RoleVolunteer,
		"org-1": booking.RoleOrganizer,
		"adm-1": booking.RoleAdmin,
	}
	svc := booking.NewService(mem, booking.NewRoleAuthorizer(dir),
		booking.WithNotifier(notifier))

	day := time.Date(2025, time.July, 14, 0, 0, 0, 0, time.UTC)
	res, slots, err := svc.CreateResource(context.Background(), booking.Resource{
		OwnerID:      "org-1",
		Title:        "Food Bank Shift",
		Location:     "Warehouse B",
		Category:     "logistics",
		StartDate:    day,
		EndDate:      day,
		SlotCapacity: 2,
	})
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	return &serviceFixture{svc: svc, mem: mem, notifier: notifier, resource: res, slots: slots}
}

// =============================================================================
// RESOURCE LIFECYCLE
// =============================================================================

func TestService_CreateResource_GeneratesSlots(t *testing.T) {
	// GIVEN: A one-day resource window with the default layout
	// WHEN: The resource is created
	// THEN: Four two-hour slots between 09:00 and 17:00 exist, all open

	f := newServiceFixture(t)

	assert.True(t, f.resource.Active)
	assert.Len(t, f.slots, 4)
	for _, slot := range f.slots {
		assert.Equal(t, f.resource.ID, slot.ResourceID)
		assert.Equal(t, 2, slot.Capacity)
		assert.Equal(t, 2*time.Hour, slot.Duration())
		assert.True(t, slot.Open)
	}
	assert.Equal(t, 9, f.slots[0].StartTime.Hour())
	assert.Equal(t, 17, f.slots[3].EndTime.Hour())
}

func TestService_SetResourceActive_OwnerOnly(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	err := f.svc.SetResourceActive(ctx, f.resource.ID, "vol-1", false)
	assert.ErrorIs(t, err, booking.ErrForbidden)

	err = f.svc.SetResourceActive(ctx, f.resource.ID, "org-1", false)
	require.NoError(t, err)

	res, err := f.svc.GetResource(ctx, f.resource.ID)
	require.NoError(t, err)
	assert.False(t, res.Active)
}

func TestService_UpdateResource(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	title := "Renamed Shift"
	location := "Annex"

	_, err := f.svc.UpdateResource(ctx, f.resource.ID, "vol-1", booking.ResourceUpdate{Title: &title})
	assert.ErrorIs(t, err, booking.ErrForbidden)

	updated, err := f.svc.UpdateResource(ctx, f.resource.ID, "org-1", booking.ResourceUpdate{
		Title:    &title,
		Location: &location,
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed Shift", updated.Title)
	assert.Equal(t, "Annex", updated.Location)
	assert.Equal(t, f.resource.Description, updated.Description, "untouched fields survive")

	empty := ""
	updated, err = f.svc.UpdateResource(ctx, f.resource.ID, "org-1", booking.ResourceUpdate{Title: &empty})
	require.NoError(t, err)
	assert.Equal(t, "Renamed Shift", updated.Title, "empty title is ignored")
}

func TestService_DeleteResource_Cascades(t *testing.T) {
	// GIVEN: A resource with slots and a booking
	// WHEN: The owner deletes it
	// THEN: Slots and bookings go with it

	f := newServiceFixture(t)
	ctx := context.Background()

	b, err := f.svc.Book(ctx, f.resource.ID, f.slots[0].ID, "vol-1")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteResource(ctx, f.resource.ID, "org-1"))

	_, err = f.svc.GetResource(ctx, f.resource.ID)
	assert.True(t, booking.IsNotFound(err))
	_, err = f.mem.GetSlot(ctx, f.slots[0].ID)
	assert.True(t, booking.IsNotFound(err))
	_, err = f.mem.GetBooking(ctx, b.ID)
	assert.True(t, booking.IsNotFound(err))
}

func TestService_ListSlots_OpenFilterTracksResourceState(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	open, err := f.svc.ListSlots(ctx, f.resource.ID, true)
	require.NoError(t, err)
	assert.Len(t, open, 4)

	require.NoError(t, f.svc.SetResourceActive(ctx, f.resource.ID, "org-1", false))

	open, err = f.svc.ListSlots(ctx, f.resource.ID, true)
	require.NoError(t, err)
	assert.Empty(t, open, "inactive resource exposes no bookable slots")

	all, err := f.svc.ListSlots(ctx, f.resource.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

// =============================================================================
// BOOKING FLOW
// =============================================================================

func TestService_Book_EmitsEvent(t *testing.T) {
	f := newServiceFixture(t)

	b, err := f.svc.Book(context.Background(), f.resource.ID, f.slots[0].ID, "vol-1")
	require.NoError(t, err)

	f.notifier.waitFor(t, 1)
	assert.Equal(t, []booking.EventKind{booking.EventBooked}, f.notifier.kinds())
	assert.Equal(t, b.ID, f.notifier.snapshot()[0].BookingID)
}

func TestService_Book_OwnerForbidden(t *testing.T) {
	// GIVEN: The organizer owning the resource
	// WHEN: They try to claim their own slot
	// THEN: Forbidden; organizers have no booking policy

	f := newServiceFixture(t)

	_, err := f.svc.Book(context.Background(), f.resource.ID, f.slots[0].ID, "org-1")
	assert.ErrorIs(t, err, booking.ErrForbidden)

	var forbidden *booking.ForbiddenError
	assert.ErrorAs(t, err, &forbidden)
	assert.Equal(t, booking.ActorID("org-1"), forbidden.ActorID)
}

func TestService_Book_UnknownActorForbidden(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Book(context.Background(), f.resource.ID, f.slots[0].ID, "ghost")
	assert.Error(t, err)
}

func TestService_Book_SlotFromOtherResource(t *testing.T) {
	// GIVEN: A slot belonging to a different resource
	// WHEN: Booked under the wrong resource ID
	// THEN: NotFound; the pair must match

	f := newServiceFixture(t)
	ctx := context.Background()

	other, otherSlots, err := f.svc.CreateResource(ctx, booking.Resource{
		OwnerID:      "org-1",
		Title:        "Park Patrol",
		StartDate:    time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC),
		SlotCapacity: 1,
	})
	require.NoError(t, err)
	_ = other

	_, err = f.svc.Book(ctx, f.resource.ID, otherSlots[0].ID, "vol-1")
	assert.True(t, booking.IsNotFound(err))
}

func TestService_Cancel_ByClaimantAndOwner(t *testing.T) {
	// GIVEN: Bookings held by vol-1 and vol-2
	// WHEN: vol-1 cancels their own and org-1 cancels vol-2's
	// THEN: Both succeed; a stranger cannot cancel anything

	f := newServiceFixture(t)
	ctx := context.Background()

	b1, err := f.svc.Book(ctx, f.resource.ID, f.slots[0].ID, "vol-1")
	require.NoError(t, err)
	b2, err := f.svc.Book(ctx, f.resource.ID, f.slots[0].ID, "vol-2")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, b1.ID, "vol-2")
	assert.ErrorIs(t, err, booking.ErrForbidden)

	cancelled, err := f.svc.Cancel(ctx, b1.ID, "vol-1")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, cancelled.Status)

	cancelled, err = f.svc.Cancel(ctx, b2.ID, "org-1")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, cancelled.Status)
}

func TestService_Cancel_FullSlotEmitsReopened(t *testing.T) {
	// GIVEN: A slot at capacity
	// WHEN: A booking is cancelled
	// THEN: Both cancelled and slot_reopened events go out

	f := newServiceFixture(t)
	ctx := context.Background()

	b1, err := f.svc.Book(ctx, f.resource.ID, f.slots[0].ID, "vol-1")
	require.NoError(t, err)
	_, err = f.svc.Book(ctx, f.resource.ID, f.slots[0].ID, "vol-2")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, b1.ID, "vol-1")
	require.NoError(t, err)

	f.notifier.waitFor(t, 4)
	assert.ElementsMatch(t,
		[]booking.EventKind{booking.EventBooked, booking.EventBooked, booking.EventCancelled, booking.EventSlotReopened},
		f.notifier.kinds())
}

func TestService_Complete_OwnerOnly(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	b, err := f.svc.Book(ctx, f.resource.ID, f.slots[0].ID, "vol-1")
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, b.ID, "vol-1")
	assert.ErrorIs(t, err, booking.ErrForbidden)

	done, err := f.svc.Complete(ctx, b.ID, "org-1")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCompleted, done.Status)
}

func TestService_ListBookings_StatusFilter(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	b1, err := f.svc.Book(ctx, f.resource.ID, f.slots[0].ID, "vol-1")
	require.NoError(t, err)
	_, err = f.svc.Book(ctx, f.resource.ID, f.slots[1].ID, "vol-1")
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, b1.ID, "vol-1")
	require.NoError(t, err)

	all, err := f.svc.ListBookings(ctx, "vol-1", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	confirmed := booking.StatusConfirmed
	live, err := f.svc.ListBookings(ctx, "vol-1", &confirmed)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, f.slots[1].ID, live[0].SlotID)
}

func TestService_Book_AdminMayBookAnything(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Book(context.Background(), f.resource.ID, f.slots[0].ID, "adm-1")
	assert.NoError(t, err)
}
