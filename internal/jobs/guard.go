// Package jobs provides the overlap guard and run bookkeeping shared by background workers.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"call-analytics/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrAlreadyRunning = errors.New("jobs: already running")

// Locker coordinates runs across instances.
// release must be safe to call after the lease expired.
type Locker interface {
	TryLock(ctx context.Context, name string) (release func(context.Context), ok bool, err error)
}

// Guard prevents overlapping runs of one job.
// The atomic flag covers this process; Locker (optional) covers other instances.
// Without a Locker the guard is single-instance only.
type Guard struct {
	name    string
	running atomic.Bool
	locker  Locker
}

func NewGuard(name string, locker Locker) *Guard {
	return &Guard{name: name, locker: locker}
}

func (g *Guard) Name() string { return g.name }

func (g *Guard) Running() bool { return g.running.Load() }

// Run executes fn unless another run holds the guard, in which case ErrAlreadyRunning is returned.
func (g *Guard) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if !g.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer g.running.Store(false)

	if g.locker != nil {
		release, ok, err := g.locker.TryLock(ctx, g.name)
		if err != nil {
			return fmt.Errorf("acquire %s lease: %w", g.name, err)
		}
		if !ok {
			return ErrAlreadyRunning
		}
		// Release with a fresh context so a cancelled run still frees the lease.
		defer func() {
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			release(rctx)
		}()
	}

	return fn(ctx)
}

// RedisLocker implements Locker with an expiring Redis lease per job name.
type RedisLocker struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{rdb: rdb, ttl: ttl, prefix: "call-analytics:lease:"}
}

func (l *RedisLocker) TryLock(ctx context.Context, name string) (func(context.Context), bool, error) {
	key := l.prefix + name
	token := uuid.NewString()

	ok, err := utils.AcquireLease(ctx, l.rdb, key, token, l.ttl)
	if err != nil || !ok {
		return nil, false, err
	}
	return func(ctx context.Context) {
		_, _ = utils.ReleaseLease(ctx, l.rdb, key, token)
	}, true, nil
}
