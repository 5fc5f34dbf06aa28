package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fitstack/centerledger/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyMarkCustomer = "attendance:mark:%s:%s"
	keyMarkLock     = "attendance:mark:lock:%s:%s"
)

// MarkLimiter guards the attendance-marking endpoint against rapid
// repeats for the same customer (double-click, two staff devices).
// It is disabled when no redis address is configured.
type MarkLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	rate    float64
	burst   int
	lockTTL time.Duration
}

func NewMarkLimiter(cfg config.Config) *MarkLimiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	return &MarkLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		locker:  NewLocker(client),
		rate:    cfg.MarkRateLimitPerSec,
		burst:   cfg.MarkRateLimitBurst,
		lockTTL: time.Duration(cfg.MarkLockTTLSeconds) * time.Second,
	}
}

func (l *MarkLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowCustomer rate-limits marks per customer.
func (l *MarkLimiter) AllowCustomer(ctx context.Context, centerID, customerID string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	key := fmt.Sprintf(keyMarkCustomer, strings.TrimSpace(centerID), strings.TrimSpace(customerID))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}

// TryLockCustomer takes a short exclusive lock for one customer's mark
// so only one in-flight marking request reaches the database at a time.
func (l *MarkLimiter) TryLockCustomer(ctx context.Context, centerID, customerID string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	key := fmt.Sprintf(keyMarkLock, strings.TrimSpace(centerID), strings.TrimSpace(customerID))
	return l.locker.TryLock(ctx, key, l.lockTTL)
}

func (l *MarkLimiter) ReleaseCustomer(ctx context.Context, centerID, customerID, token string) error {
	if !l.Enabled() {
		return nil
	}
	key := fmt.Sprintf(keyMarkLock, strings.TrimSpace(centerID), strings.TrimSpace(customerID))
	return l.locker.Release(ctx, key, token)
}
