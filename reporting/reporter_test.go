package reporting_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volunteerhub/booking-engine/booking"
	"github.com/volunteerhub/booking-engine/booking/store"
	"github.com/volunteerhub/booking-engine/reporting"
)

// =============================================================================
// FIXTURE
// =============================================================================

// reportFixture seeds one resource with three slots of mixed lengths:
//
//	slotA 09:00-12:00 (3h)  alice completed, carol confirmed
//	slotB 12:00-13:00 (1h)  bob completed, carol cancelled
//	slotC 13:00-14:00 (1h)  bob completed
//
// so the points and hours orderings disagree: bob leads on points
// (2 completions), alice leads on hours.
type reportFixture struct {
	store    *store.Memory
	reporter *reporting.Reporter
	resource booking.ResourceID
}

var (
	tAlice = time.Date(2025, time.September, 1, 12, 0, 0, 0, time.UTC)
	tBob   = time.Date(2025, time.September, 1, 14, 0, 0, 0, time.UTC)
)

func newReportFixture(t *testing.T, opts ...reporting.ReporterOption) *reportFixture {
	t.Helper()
	ctx := context.Background()

	mem := store.NewMemory()
	res := booking.Resource{
		ID:           booking.NewResourceID(),
		OwnerID:      "org-1",
		Title:        "Food Bank",
		StartDate:    time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC),
		SlotCapacity: 5,
		Active:       true,
	}
	require.NoError(t, mem.SaveResource(ctx, res))

	day := res.StartDate
	slotAt := func(startHour, endHour, reserved int) booking.Slot {
		slot := booking.Slot{
			ID:            booking.NewSlotID(),
			ResourceID:    res.ID,
			StartTime:     day.Add(time.Duration(startHour) * time.Hour),
			EndTime:       day.Add(time.Duration(endHour) * time.Hour),
			Capacity:      res.SlotCapacity,
			ReservedCount: reserved,
			Open:          true,
		}
		require.NoError(t, mem.SaveSlot(ctx, slot))
		return slot
	}
	slotA := slotAt(9, 12, 2)
	slotB := slotAt(12, 13, 1)
	slotC := slotAt(13, 14, 1)

	book := func(slot booking.Slot, claimant booking.ActorID, st booking.BookingStatus, at time.Time) {
		require.NoError(t, mem.InsertBooking(ctx, booking.Booking{
			ID:         booking.NewBookingID(),
			SlotID:     slot.ID,
			ResourceID: slot.ResourceID,
			ClaimantID: claimant,
			Status:     st,
			CreatedAt:  at,
			UpdatedAt:  at,
		}))
	}
	book(slotA, "alice", booking.StatusCompleted, tAlice)
	book(slotA, "carol", booking.StatusConfirmed, tAlice)
	book(slotB, "bob", booking.StatusCompleted, tBob)
	book(slotB, "carol", booking.StatusCancelled, tAlice)
	book(slotC, "bob", booking.StatusCompleted, tBob)

	return &reportFixture{
		store:    mem,
		reporter: reporting.NewReporter(mem, mem, opts...),
		resource: res.ID,
	}
}

// =============================================================================
// ACTOR STATS
// =============================================================================

func TestReporter_ActorStats(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	alice, err := f.reporter.ActorStats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, alice.Completed)
	assert.Equal(t, 0, alice.Confirmed)
	assert.True(t, alice.Hours.Equal(decimal.NewFromInt(3)), "got %s hours", alice.Hours)
	// 10 per completion + 2 per hour.
	assert.True(t, alice.Points.Equal(decimal.NewFromInt(16)), "got %s points", alice.Points)
	assert.True(t, alice.LastCompletedAt.Equal(tAlice))

	bob, err := f.reporter.ActorStats(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, bob.Completed)
	assert.True(t, bob.Hours.Equal(decimal.NewFromInt(2)))
	assert.True(t, bob.Points.Equal(decimal.NewFromInt(24)))

	carol, err := f.reporter.ActorStats(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, 1, carol.Confirmed)
	assert.Equal(t, 1, carol.Cancelled)
	assert.Equal(t, 0, carol.Completed)
	assert.True(t, carol.Points.IsZero())
	assert.True(t, carol.LastCompletedAt.IsZero())
}

func TestReporter_ActorStats_UnknownActor(t *testing.T) {
	f := newReportFixture(t)

	stats, err := f.reporter.ActorStats(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, booking.ActorID("nobody"), stats.ActorID)
	assert.Equal(t, 0, stats.Completed)
	assert.True(t, stats.Points.IsZero())
}

func TestReporter_ActorStats_CustomScoring(t *testing.T) {
	f := newReportFixture(t, reporting.WithScoring(reporting.StandardScoring{
		PerCompleted: decimal.NewFromInt(100),
		PerHour:      decimal.NewFromInt(1),
	}))

	alice, err := f.reporter.ActorStats(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, alice.Points.Equal(decimal.NewFromInt(103)), "got %s", alice.Points)
}

func TestStandardScoring_ZeroValueUsesDefaults(t *testing.T) {
	score := reporting.StandardScoring{}.Score(3, decimal.NewFromInt(4))
	assert.True(t, score.Equal(decimal.NewFromInt(38)), "got %s", score)
}

// =============================================================================
// RESOURCE STATS
// =============================================================================

func TestReporter_ResourceStats(t *testing.T) {
	f := newReportFixture(t)

	stats, err := f.reporter.ResourceStats(context.Background(), f.resource)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.SlotCount)
	assert.Equal(t, 15, stats.TotalCapacity)
	assert.Equal(t, 4, stats.Reserved)
	assert.Equal(t, 11, stats.Remaining)

	want := decimal.NewFromInt(4).Div(decimal.NewFromInt(15))
	assert.True(t, stats.FillRate.Equal(want), "got %s", stats.FillRate)
}

func TestReporter_ResourceStats_UnknownResource(t *testing.T) {
	f := newReportFixture(t)

	_, err := f.reporter.ResourceStats(context.Background(), "missing")
	assert.True(t, booking.IsNotFound(err))
}

// =============================================================================
// LEADERBOARDS
// =============================================================================

func TestReporter_Leaderboard_PointsOrder(t *testing.T) {
	f := newReportFixture(t)

	board, err := f.reporter.Leaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, booking.ActorID("bob"), board[0].ActorID)
	assert.Equal(t, booking.ActorID("alice"), board[1].ActorID)
	assert.Equal(t, booking.ActorID("carol"), board[2].ActorID)
}

func TestReporter_HoursLeaderboard_Order(t *testing.T) {
	f := newReportFixture(t)

	board, err := f.reporter.HoursLeaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, booking.ActorID("alice"), board[0].ActorID)
	assert.Equal(t, booking.ActorID("bob"), board[1].ActorID)
}

func TestReporter_Leaderboard_Tiebreaks(t *testing.T) {
	// GIVEN: Three actors with identical points and hours
	// WHEN: Ranked
	// THEN: The earlier completion wins, then the lower actor id

	ctx := context.Background()
	mem := store.NewMemory()

	res := booking.Resource{
		ID:           booking.NewResourceID(),
		OwnerID:      "org-1",
		Title:        "Tie",
		StartDate:    time.Date(2025, time.September, 2, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2025, time.September, 2, 0, 0, 0, 0, time.UTC),
		SlotCapacity: 5,
		Active:       true,
	}
	require.NoError(t, mem.SaveResource(ctx, res))
	slot := booking.Slot{
		ID:         booking.NewSlotID(),
		ResourceID: res.ID,
		StartTime:  res.StartDate.Add(9 * time.Hour),
		EndTime:    res.StartDate.Add(11 * time.Hour),
		Capacity:   5,
		Open:       true,
	}
	require.NoError(t, mem.SaveSlot(ctx, slot))

	early := time.Date(2025, time.September, 2, 11, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	for actor, at := range map[booking.ActorID]time.Time{
		"dave":  early,
		"erin":  late,
		"frank": late,
	} {
		require.NoError(t, mem.InsertBooking(ctx, booking.Booking{
			ID:         booking.NewBookingID(),
			SlotID:     slot.ID,
			ResourceID: res.ID,
			ClaimantID: actor,
			Status:     booking.StatusCompleted,
			CreatedAt:  at,
			UpdatedAt:  at,
		}))
	}

	reporter := reporting.NewReporter(mem, mem)
	board, err := reporter.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, booking.ActorID("dave"), board[0].ActorID)
	assert.Equal(t, booking.ActorID("erin"), board[1].ActorID)
	assert.Equal(t, booking.ActorID("frank"), board[2].ActorID)
}

func TestReporter_Leaderboard_Empty(t *testing.T) {
	mem := store.NewMemory()
	reporter := reporting.NewReporter(mem, mem)

	board, err := reporter.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.Empty(t, board)
}
