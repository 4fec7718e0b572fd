package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClaimGuard records in-flight reminder claims in Redis so concurrent
// service instances avoid racing the storage claim for the same task.
type RedisClaimGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClaimGuard creates a guard using the provided Redis client and TTL.
func NewRedisClaimGuard(client *redis.Client, ttl time.Duration) *RedisClaimGuard {
	return &RedisClaimGuard{client: client, ttl: ttl}
}

func (g *RedisClaimGuard) key(userID, taskID string) string {
	return fmt.Sprintf("reminder-claim:%s:%s", userID, taskID)
}

// Acquire records the claim if no other instance holds it. It returns true
// when the claim was newly acquired.
func (g *RedisClaimGuard) Acquire(ctx context.Context, userID, taskID string) (bool, error) {
	return g.client.SetNX(ctx, g.key(userID, taskID), 1, g.ttl).Result()
}

// Release drops a previously acquired claim. It is used when the storage
// claim failed transiently so a later pass may retry the task.
func (g *RedisClaimGuard) Release(ctx context.Context, userID, taskID string) error {
	return g.client.Del(ctx, g.key(userID, taskID)).Err()
}
