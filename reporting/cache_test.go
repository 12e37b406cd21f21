package reporting_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volunteerhub/booking-engine/booking"
	"github.com/volunteerhub/booking-engine/booking/store"
	"github.com/volunteerhub/booking-engine/reporting"
)

const (
	keyPoints = "leaderboard:points"
	keyHours  = "leaderboard:hours"
)

// failingLedger proves a cache hit never touches the ledger.
type failingLedger struct{}

func (failingLedger) LedgerEntries(context.Context) ([]booking.LedgerEntry, error) {
	return nil, assert.AnError
}

func (failingLedger) LedgerEntriesByClaimant(context.Context, booking.ActorID) ([]booking.LedgerEntry, error) {
	return nil, assert.AnError
}

func TestLeaderboardCache_HitSkipsLedger(t *testing.T) {
	// GIVEN: A cached points board and a ledger that errors on read
	// WHEN: The leaderboard is requested
	// THEN: The cached board is served without touching the ledger

	client, mock := redismock.NewClientMock()
	cached := []reporting.LeaderboardEntry{{
		ActorID:   "alice",
		Points:    decimal.NewFromInt(16),
		Hours:     decimal.NewFromInt(3),
		Completed: 1,
	}}
	raw, err := json.Marshal(cached)
	require.NoError(t, err)
	mock.ExpectGet(keyPoints).SetVal(string(raw))

	cache := reporting.NewLeaderboardCache(client, time.Minute)
	reporter := reporting.NewReporter(failingLedger{}, store.NewMemory(),
		reporting.WithLeaderboardCache(cache))

	board, err := reporter.Leaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, booking.ActorID("alice"), board[0].ActorID)
	assert.True(t, board[0].Points.Equal(decimal.NewFromInt(16)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaderboardCache_MissComputesAndFills(t *testing.T) {
	// GIVEN: An empty cache in front of seeded ledger data
	// WHEN: The leaderboard is requested
	// THEN: The board is computed and written back with the TTL

	f := newReportFixture(t)
	client, mock := redismock.NewClientMock()
	cache := reporting.NewLeaderboardCache(client, time.Minute)
	reporter := reporting.NewReporter(f.store, f.store,
		reporting.WithLeaderboardCache(cache))

	mock.ExpectGet(keyPoints).RedisNil()
	mock.Regexp().ExpectSet(keyPoints, `.*"actor_id":"bob".*`, time.Minute).SetVal("OK")

	board, err := reporter.Leaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, booking.ActorID("bob"), board[0].ActorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaderboardCache_RedisDownIsAMiss(t *testing.T) {
	f := newReportFixture(t)
	client, mock := redismock.NewClientMock()
	cache := reporting.NewLeaderboardCache(client, time.Minute)
	reporter := reporting.NewReporter(f.store, f.store,
		reporting.WithLeaderboardCache(cache))

	mock.ExpectGet(keyHours).SetErr(assert.AnError)
	mock.Regexp().ExpectSet(keyHours, `.*`, time.Minute).SetVal("OK")

	board, err := reporter.HoursLeaderboard(context.Background())
	require.NoError(t, err, "redis failures must not fail the report")
	require.Len(t, board, 3)
	assert.Equal(t, booking.ActorID("alice"), board[0].ActorID)
}

func TestCacheInvalidator_DropsBothBoards(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := reporting.NewLeaderboardCache(client, time.Minute)
	invalidator := &reporting.CacheInvalidator{Cache: cache}

	mock.ExpectDel(keyPoints, keyHours).SetVal(2)

	invalidator.Notify(context.Background(), booking.Event{Kind: booking.EventBooked})
	assert.NoError(t, mock.ExpectationsWereMet())
}
