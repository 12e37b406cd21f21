/*
Package reporting derives read-side aggregates from the booking ledger.

PURPOSE:
  Computes per-actor statistics, per-resource fill rates and the
  leaderboards from ledger entries. Every report is built from one
  consistent ledger read; nothing here mutates booking state or blocks
  the reservation path.

AGGREGATES:
  ActorStats:    confirmed/completed/cancelled counts, accumulated hours,
                 points (via ScoringPolicy)
  ResourceStats: total capacity, reserved, remaining, fill rate
  Leaderboards:  by points and by hours, totally ordered for paging

ORDERING:
  Leaderboard order is a total order: primary metric descending, then
  earliest last-completion, then ActorID. Two calls over the same ledger
  always page identically.

PRECISION:
  Hours and points use shopspring/decimal. Slot durations convert via
  whole minutes, so a 90-minute slot contributes exactly 1.5 hours.

SEE ALSO:
  - booking/store.go: LedgerReader interface
  - scoring.go: ScoringPolicy and the default formula
  - cache.go: optional redis leaderboard cache
*/
package reporting

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/volunteerhub/booking-engine/booking"
)

// SlotSource supplies slot rows for resource-level aggregates. Every
// booking store satisfies it.
type SlotSource interface {
	ListSlots(ctx context.Context, resourceID booking.ResourceID, onlyOpen bool) ([]booking.Slot, error)
}

// ActorStats summarizes one claimant's booking history.
type ActorStats struct {
	ActorID         booking.ActorID `json:"actor_id"`
	Confirmed       int             `json:"confirmed"`
	Completed       int             `json:"completed"`
	Cancelled       int             `json:"cancelled"`
	Hours           decimal.Decimal `json:"hours"`
	Points          decimal.Decimal `json:"points"`
	LastCompletedAt time.Time       `json:"last_completed_at,omitzero"`
}

// ResourceStats summarizes capacity usage across a resource's slots.
type ResourceStats struct {
	ResourceID    booking.ResourceID `json:"resource_id"`
	SlotCount     int                `json:"slot_count"`
	TotalCapacity int                `json:"total_capacity"`
	Reserved      int                `json:"reserved"`
	Remaining     int                `json:"remaining"`
	FillRate      decimal.Decimal    `json:"fill_rate"`
}

// LeaderboardEntry is one row of a ranked report.
type LeaderboardEntry struct {
	ActorID         booking.ActorID `json:"actor_id"`
	Points          decimal.Decimal `json:"points"`
	Hours           decimal.Decimal `json:"hours"`
	Completed       int             `json:"completed"`
	LastCompletedAt time.Time       `json:"last_completed_at,omitzero"`
}

// Reporter builds aggregates from a ledger reader.
type Reporter struct {
	ledger  booking.LedgerReader
	slots   SlotSource
	scoring ScoringPolicy
	cache   *LeaderboardCache
}

// ReporterOption customizes a Reporter.
type ReporterOption func(*Reporter)

// WithScoring replaces the default scoring policy.
func WithScoring(p ScoringPolicy) ReporterOption {
	return func(r *Reporter) { r.scoring = p }
}

// WithLeaderboardCache enables the redis leaderboard cache.
func WithLeaderboardCache(c *LeaderboardCache) ReporterOption {
	return func(r *Reporter) { r.cache = c }
}

// NewReporter creates a Reporter over the given ledger and slot source.
func NewReporter(ledger booking.LedgerReader, slots SlotSource, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		ledger:  ledger,
		slots:   slots,
		scoring: StandardScoring{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// =============================================================================
// PER-ACTOR STATS
// =============================================================================

// ActorStats computes stats for one claimant from a single ledger read.
func (r *Reporter) ActorStats(ctx context.Context, actor booking.ActorID) (*ActorStats, error) {
	entries, err := r.ledger.LedgerEntriesByClaimant(ctx, actor)
	if err != nil {
		return nil, err
	}

	stats := accumulate(entries)[actor]
	if stats == nil {
		stats = &ActorStats{ActorID: actor, Hours: decimal.Zero, Points: decimal.Zero}
	}
	stats.Points = r.scoring.Score(stats.Completed, stats.Hours)
	return stats, nil
}

// accumulate folds ledger entries into per-actor stats. Hours accrue
// from completed bookings only.
func accumulate(entries []booking.LedgerEntry) map[booking.ActorID]*ActorStats {
	byActor := make(map[booking.ActorID]*ActorStats)
	for _, e := range entries {
		stats := byActor[e.ClaimantID]
		if stats == nil {
			stats = &ActorStats{ActorID: e.ClaimantID, Hours: decimal.Zero, Points: decimal.Zero}
			byActor[e.ClaimantID] = stats
		}

		switch e.Status {
		case booking.StatusConfirmed:
			stats.Confirmed++
		case booking.StatusCancelled:
			stats.Cancelled++
		case booking.StatusCompleted:
			stats.Completed++
			stats.Hours = stats.Hours.Add(slotHours(e))
			if e.UpdatedAt.After(stats.LastCompletedAt) {
				stats.LastCompletedAt = e.UpdatedAt
			}
		}
	}
	return byActor
}

func slotHours(e booking.LedgerEntry) decimal.Decimal {
	minutes := int64(e.SlotEnd.Sub(e.SlotStart) / time.Minute)
	return decimal.NewFromInt(minutes).Div(decimal.NewFromInt(60))
}

// =============================================================================
// PER-RESOURCE STATS
// =============================================================================

// ResourceStats reports capacity usage across all slots of a resource.
func (r *Reporter) ResourceStats(ctx context.Context, resourceID booking.ResourceID) (*ResourceStats, error) {
	slots, err := r.slots.ListSlots(ctx, resourceID, false)
	if err != nil {
		return nil, err
	}

	stats := &ResourceStats{ResourceID: resourceID, FillRate: decimal.Zero}
	for _, slot := range slots {
		stats.SlotCount++
		stats.TotalCapacity += slot.Capacity
		stats.Reserved += slot.ReservedCount
	}
	stats.Remaining = stats.TotalCapacity - stats.Reserved
	if stats.TotalCapacity > 0 {
		stats.FillRate = decimal.NewFromInt(int64(stats.Reserved)).
			Div(decimal.NewFromInt(int64(stats.TotalCapacity)))
	}
	return stats, nil
}

// =============================================================================
// LEADERBOARDS
// =============================================================================

// Leaderboard ranks actors by points.
func (r *Reporter) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	return r.leaderboard(ctx, cacheKeyPoints, func(a, b LeaderboardEntry) int {
		return b.Points.Cmp(a.Points)
	})
}

// HoursLeaderboard ranks actors by accumulated hours.
func (r *Reporter) HoursLeaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	return r.leaderboard(ctx, cacheKeyHours, func(a, b LeaderboardEntry) int {
		return b.Hours.Cmp(a.Hours)
	})
}

func (r *Reporter) leaderboard(ctx context.Context, key string, primary func(a, b LeaderboardEntry) int) ([]LeaderboardEntry, error) {
	if r.cache != nil {
		if cached, ok := r.cache.Get(ctx, key); ok {
			return cached, nil
		}
	}

	entries, err := r.ledger.LedgerEntries(ctx)
	if err != nil {
		return nil, err
	}

	board := r.rank(accumulate(entries), primary)
	if r.cache != nil {
		r.cache.Put(ctx, key, board)
	}
	return board, nil
}

func (r *Reporter) rank(byActor map[booking.ActorID]*ActorStats, primary func(a, b LeaderboardEntry) int) []LeaderboardEntry {
	board := make([]LeaderboardEntry, 0, len(byActor))
	for _, stats := range byActor {
		board = append(board, LeaderboardEntry{
			ActorID:         stats.ActorID,
			Points:          r.scoring.Score(stats.Completed, stats.Hours),
			Hours:           stats.Hours,
			Completed:       stats.Completed,
			LastCompletedAt: stats.LastCompletedAt,
		})
	}

	sort.Slice(board, func(i, j int) bool {
		if c := primary(board[i], board[j]); c != 0 {
			return c < 0
		}
		// Earlier completion of the same score ranks first.
		if !board[i].LastCompletedAt.Equal(board[j].LastCompletedAt) {
			return board[i].LastCompletedAt.Before(board[j].LastCompletedAt)
		}
		return board[i].ActorID < board[j].ActorID
	})
	return board
}
