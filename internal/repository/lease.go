package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// EscalationLease grants short-lived per-ticket leases so that concurrent
// scanner instances never escalate the same ticket twice.
type EscalationLease interface {
	Acquire(ctx context.Context, ticketID string) (bool, error)
	Release(ctx context.Context, ticketID string)
}

type redisLease struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLease builds a lease store over Redis SET NX.
func NewRedisLease(client *redis.Client, ttl time.Duration) EscalationLease {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &redisLease{client: client, ttl: ttl}
}

func (l *redisLease) Acquire(ctx context.Context, ticketID string) (bool, error) {
	return l.client.SetNX(ctx, leaseKey(ticketID), "1", l.ttl).Result()
}

func (l *redisLease) Release(ctx context.Context, ticketID string) {
	_ = l.client.Del(ctx, leaseKey(ticketID)).Err()
}

func leaseKey(ticketID string) string {
	return "escalation:lease:" + ticketID
}

// noopLease grants every acquisition. Used when Redis is not configured;
// the store-level escalation CAS still bounds duplicate work.
type noopLease struct{}

// NewNoopLease returns a lease that always grants.
func NewNoopLease() EscalationLease {
	return noopLease{}
}

func (noopLease) Acquire(ctx context.Context, ticketID string) (bool, error) { return true, nil }

func (noopLease) Release(ctx context.Context, ticketID string) {}
