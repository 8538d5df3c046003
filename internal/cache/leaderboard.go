package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"taskquest/internal/config"
)

const leaderboardTTL = 60 * time.Second

// LeaderboardCache caches challenge leaderboards in Redis. All methods
// degrade to cache misses when Redis is unreachable or unconfigured.
type LeaderboardCache struct {
	client *redis.Client
}

// NewLeaderboardCache creates a cache from config. A nil cache is
// returned when no Redis address is configured; callers must treat a
// nil *LeaderboardCache as a permanent miss.
func NewLeaderboardCache(cfg config.RedisConfig) *LeaderboardCache {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = client.Ping(ctx).Err()
	return &LeaderboardCache{client: client}
}

func leaderboardKey(challengeID uint) string {
	return fmt.Sprintf("leaderboard:challenge:%d", challengeID)
}

// Get returns the cached leaderboard JSON for a challenge, unmarshalled
// into dest. Returns false on any miss or error.
func (c *LeaderboardCache) Get(ctx context.Context, challengeID uint, dest interface{}) bool {
	if c == nil {
		return false
	}
	raw, err := c.client.Get(ctx, leaderboardKey(challengeID)).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

// Set stores the leaderboard for a challenge with a short TTL.
func (c *LeaderboardCache) Set(ctx context.Context, challengeID uint, value interface{}) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, leaderboardKey(challengeID), raw, leaderboardTTL).Err()
}

// Invalidate drops the cached leaderboard after a progress change.
func (c *LeaderboardCache) Invalidate(ctx context.Context, challengeID uint) {
	if c == nil {
		return
	}
	_ = c.client.Del(ctx, leaderboardKey(challengeID)).Err()
}
