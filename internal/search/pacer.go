package search

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const paceKey = "pricewatch:search:pace"

// Pacer enforces a minimum interval between search backend calls so the
// bounded-concurrency collection fan-out shares one request budget. Backed by
// Redis when available so multiple processes pace together; falls back to a
// process-local clock, and fails open on Redis errors.
type Pacer struct {
	rdb      *redis.Client
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func NewPacer(rdb *redis.Client, interval time.Duration) *Pacer {
	return &Pacer{rdb: rdb, interval: interval}
}

// Wait blocks until the next call is allowed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.interval <= 0 {
		return nil
	}
	if p.rdb == nil {
		return p.waitLocal(ctx)
	}

	for {
		ok, err := p.rdb.SetNX(ctx, paceKey, 1, p.interval).Result()
		if err != nil {
			// Fail open on Redis errors
			return p.waitLocal(ctx)
		}
		if ok {
			return nil
		}
		ttl, err := p.rdb.PTTL(ctx, paceKey).Result()
		if err != nil || ttl <= 0 {
			ttl = p.interval
		}
		select {
		case <-time.After(ttl):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Pacer) waitLocal(ctx context.Context) error {
	p.mu.Lock()
	next := p.last.Add(p.interval)
	now := time.Now()
	if next.Before(now) {
		next = now
	}
	p.last = next
	p.mu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
