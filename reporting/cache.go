package reporting

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/volunteerhub/booking-engine/booking"
)

const (
	cacheKeyPoints = "leaderboard:points"
	cacheKeyHours  = "leaderboard:hours"
)

// LeaderboardCache keeps serialized leaderboards in redis with a TTL.
// Cache failures are logged and treated as misses; reports never fail
// because redis is down.
type LeaderboardCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewLeaderboardCache wraps a redis client. A zero ttl defaults to one
// minute.
func NewLeaderboardCache(client redis.Cmdable, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &LeaderboardCache{client: client, ttl: ttl}
}

func (c *LeaderboardCache) Get(ctx context.Context, key string) ([]LeaderboardEntry, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("leaderboard cache get %s: %v", key, err)
		}
		return nil, false
	}

	var board []LeaderboardEntry
	if err := json.Unmarshal(raw, &board); err != nil {
		log.Printf("leaderboard cache decode %s: %v", key, err)
		return nil, false
	}
	return board, true
}

func (c *LeaderboardCache) Put(ctx context.Context, key string, board []LeaderboardEntry) {
	raw, err := json.Marshal(board)
	if err != nil {
		log.Printf("leaderboard cache encode %s: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, string(raw), c.ttl).Err(); err != nil {
		log.Printf("leaderboard cache set %s: %v", key, err)
	}
}

// Invalidate drops both leaderboards.
func (c *LeaderboardCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, cacheKeyPoints, cacheKeyHours).Err(); err != nil {
		log.Printf("leaderboard cache invalidate: %v", err)
	}
}

// CacheInvalidator drops cached leaderboards whenever a booking mutates.
// It plugs into the service as a booking.Notifier, usually behind a
// MultiNotifier next to the log notifier.
type CacheInvalidator struct {
	Cache *LeaderboardCache
}

func (ci *CacheInvalidator) Notify(ctx context.Context, e booking.Event) {
	ci.Cache.Invalidate(ctx)
}
