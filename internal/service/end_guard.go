package service

import (
	"context"
	"time"

	"github.com/Dauka12/olympiad-backend/internal/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// endGuardTTL bounds how long a finalization claim can be held, so a
// crashed finisher cannot strand a session behind a stale guard.
const endGuardTTL = 30 * time.Second

// RedisEndGuard implements EndGuard with a SETNX claim per session.
type RedisEndGuard struct {
	rdb *redis.Client
}

// NewRedisEndGuard creates a new RedisEndGuard.
func NewRedisEndGuard(rdb *redis.Client) *RedisEndGuard {
	return &RedisEndGuard{rdb: rdb}
}

// TryBegin claims the right to finalize the session. Returns false when
// another caller (manual end or deadline sweep) already holds the claim.
func (g *RedisEndGuard) TryBegin(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	return g.rdb.SetNX(ctx, config.CacheKey.SessionEndingKey(sessionID.String()), 1, endGuardTTL).Result()
}

// Finish releases the claim.
func (g *RedisEndGuard) Finish(ctx context.Context, sessionID uuid.UUID) error {
	return g.rdb.Del(ctx, config.CacheKey.SessionEndingKey(sessionID.String())).Err()
}
