package service

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const promotionGuardPrefix = "admission:promoting:"

// RedisPromotionGuard implements PromotionGuard with a SETNX lease so the
// debounce also holds across replicas sharing one Redis.
type RedisPromotionGuard struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisPromotionGuard constructs a Redis-backed guard.
func NewRedisPromotionGuard(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisPromotionGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPromotionGuard{client: client, ttl: ttl, logger: logger}
}

// Acquire takes the per-applicant lease. A Redis outage fails open: the guard
// is a double-click debounce, not a correctness lock.
func (g *RedisPromotionGuard) Acquire(ctx context.Context, applicantID string) (bool, error) {
	ok, err := g.client.SetNX(ctx, promotionGuardPrefix+applicantID, "1", g.ttl).Result()
	if err != nil {
		g.logger.Warn("promotion guard acquire failed, continuing without it",
			zap.String("applicant_id", applicantID), zap.Error(err))
		return true, nil
	}
	return ok, nil
}

// Release drops the lease early; the TTL covers crashed holders.
func (g *RedisPromotionGuard) Release(ctx context.Context, applicantID string) {
	if err := g.client.Del(ctx, promotionGuardPrefix+applicantID).Err(); err != nil {
		g.logger.Warn("promotion guard release failed",
			zap.String("applicant_id", applicantID), zap.Error(err))
	}
}

// MemoryPromotionGuard implements PromotionGuard in-process, used when Redis
// is not configured and in tests.
type MemoryPromotionGuard struct {
	ttl time.Duration

	mu     sync.Mutex
	leases map[string]time.Time
}

// NewMemoryPromotionGuard constructs an in-memory guard.
func NewMemoryPromotionGuard(ttl time.Duration) *MemoryPromotionGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &MemoryPromotionGuard{ttl: ttl, leases: make(map[string]time.Time)}
}

// Acquire takes the lease unless a live one exists.
func (g *MemoryPromotionGuard) Acquire(ctx context.Context, applicantID string) (bool, error) {
	now := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	if expiry, ok := g.leases[applicantID]; ok && expiry.After(now) {
		return false, nil
	}
	g.leases[applicantID] = now.Add(g.ttl)
	return true, nil
}

// Release drops the lease.
func (g *MemoryPromotionGuard) Release(ctx context.Context, applicantID string) {
	g.mu.Lock()
	delete(g.leases, applicantID)
	g.mu.Unlock()
}
