package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Per-order locks serialize the redirect, the callback and the poller when
// they race on the same order. Redis SetNX is used when available so the
// boundary holds across processes; a per-key in-memory mutex covers
// single-process deployments.

const (
	defaultLockTTL  = 30 * time.Second
	defaultLockWait = 10 * time.Second
	lockRetryEvery  = 50 * time.Millisecond
)

type redisOrderLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
}

func (l *redisOrderLocker) Lock(ctx context.Context, incrementID string) (func(), error) {
	key := l.prefix + ":" + incrementID
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, "1", l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			release := func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				l.client.Del(releaseCtx, key)
			}
			return release, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryEvery):
		}
	}
}

type memoryOrderLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newMemoryOrderLocker() *memoryOrderLocker {
	return &memoryOrderLocker{locks: make(map[string]*lockEntry)}
}

func (l *memoryOrderLocker) Lock(_ context.Context, incrementID string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[incrementID]
	if !ok {
		entry = &lockEntry{}
		l.locks[incrementID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	release := func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, incrementID)
		}
		l.mu.Unlock()
	}
	return release, nil
}

// NewOrderLocker builds a Redis-backed locker and falls back to the
// in-memory one when Redis is unreachable or not configured.
func NewOrderLocker(addr, pass string, db int, ttl time.Duration) (OrderLocker, error) {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if addr == "" {
		return newMemoryOrderLocker(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return newMemoryOrderLocker(), err
	}

	return &redisOrderLocker{
		client: client,
		prefix: "paydibs:order",
		ttl:    ttl,
		wait:   defaultLockWait,
	}, nil
}
