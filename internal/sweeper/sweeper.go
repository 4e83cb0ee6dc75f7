// Package sweeper periodically expires escrow holds whose ttl elapsed.
//
// Reads never count an elapsed hold as reserved, so a late sweep only delays the status change.
// With several instances running, a redis lease lets one instance sweep per interval.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// LeaseKey is the redis key of the sweep lease.
const LeaseKey = "wallet:escrow-sweeper:lease"

// Expirer expires due holds.
type Expirer interface {
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
}

// Lease grants the right to sweep for one interval.
type Lease interface {
	Acquire(ctx context.Context) (bool, error)
}

// RedisLease is a lease held as a redis key with a ttl.
type RedisLease struct {
	client *redis.Client
	owner  string
	ttl    time.Duration
}

// NewRedisLease returns a lease identified by owner. A nil client always grants the lease.
func NewRedisLease(client *redis.Client, owner string, ttl time.Duration) *RedisLease {
	return &RedisLease{
		client: client,
		owner:  owner,
		ttl:    ttl,
	}
}

// Acquire takes the lease, or extends it when this owner already holds it.
func (l *RedisLease) Acquire(ctx context.Context) (bool, error) {
	if l.client == nil {
		return true, nil
	}

	ok, err := l.client.SetNX(ctx, LeaseKey, l.owner, l.ttl).Result()
	if err != nil || ok {
		return ok, err
	}

	holder, err := l.client.Get(ctx, LeaseKey).Result()
	if err == redis.Nil {
		return false, nil
	}

	if err != nil || holder != l.owner {
		return false, err
	}

	return l.client.Expire(ctx, LeaseKey, l.ttl).Result()
}

// Sweeper runs expiry passes.
type Sweeper struct {
	expirer  Expirer
	lease    Lease
	interval time.Duration
	batch    int
	now      func() time.Time
}

// ErrInvalidSettings indicates a non-positive sweep interval or batch size.
var ErrInvalidSettings = errors.New("sweep interval and batch must be positive")

// New returns a sweeper expiring up to batch holds per query every interval.
func New(expirer Expirer, lease Lease, interval time.Duration, batch int) (*Sweeper, error) {
	if interval <= 0 || batch <= 0 {
		return nil, fmt.Errorf("%w: interval %v, batch %d", ErrInvalidSettings, interval, batch)
	}

	return &Sweeper{
		expirer:  expirer,
		lease:    lease,
		interval: interval,
		batch:    batch,
		now:      time.Now,
	}, nil
}

// Sweep runs one pass and returns how many holds it expired.
//
// It does nothing when another instance holds the lease.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ok, err := s.lease.Acquire(ctx)
	if err != nil || !ok {
		return 0, err
	}

	total := 0
	now := s.now()

	for {
		n, err := s.expirer.ExpireDue(ctx, now, s.batch)
		total += n

		if err != nil || n < s.batch {
			return total, err
		}
	}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	l := zerolog.Ctx(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	l.Info().Dur("interval", s.interval).Int("batch", s.batch).Msg("escrow sweeper started")

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("escrow sweeper stopped")
			return nil
		case <-ticker.C:
		}

		n, err := s.Sweep(ctx)
		if err != nil && ctx.Err() == nil {
			l.Error().Err(err).Int("expired", n).Msg("escrow sweep")
			continue
		}

		if n > 0 {
			l.Info().Int("expired", n).Msg("escrow sweep")
		}
	}
}
