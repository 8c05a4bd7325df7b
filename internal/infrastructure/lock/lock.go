// Package lock provides named, expiring locks that keep periodic jobs to one
// instance at a time.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
)

var (
	// ErrNotObtained is returned when another holder owns the lock
	ErrNotObtained = errors.New("lock: not obtained")

	// ErrNotHeld is returned when releasing or refreshing a lock that has expired or was taken over
	ErrNotHeld = errors.New("lock: not held")
)

// Locker obtains named locks
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is an obtained lock
type Lock interface {
	Key() string
	Refresh(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

// RedisLocker implements Locker with bsm/redislock
type RedisLocker struct {
	client    *redislock.Client
	keyPrefix string
}

// NewRedisLocker creates a locker on an existing Redis client
func NewRedisLocker(client redislock.RedisClient, keyPrefix string) *RedisLocker {
	return &RedisLocker{
		client:    redislock.New(client),
		keyPrefix: keyPrefix,
	}
}

// Obtain tries once to take the lock
func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lk, err := l.client.Obtain(ctx, l.keyPrefix+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrNotObtained
	}
	if err != nil {
		return nil, err
	}
	return &redisLock{lock: lk}, nil
}

type redisLock struct {
	lock *redislock.Lock
}

func (l *redisLock) Key() string { return l.lock.Key() }

func (l *redisLock) Refresh(ctx context.Context, ttl time.Duration) error {
	err := l.lock.Refresh(ctx, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return ErrNotHeld
	}
	return err
}

func (l *redisLock) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return ErrNotHeld
	}
	return err
}

// LocalLocker implements Locker inside one process.
// It is used when Redis is not configured and in tests.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localEntry
	now   func() time.Time
	token uint64
}

type localEntry struct {
	token     uint64
	expiresAt time.Time
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localEntry), now: time.Now}
}

// Obtain takes the lock if it is free or expired
func (l *LocalLocker) Obtain(_ context.Context, key string, ttl time.Duration) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.held[key]; ok && now.Before(e.expiresAt) {
		return nil, ErrNotObtained
	}
	l.token++
	l.held[key] = localEntry{token: l.token, expiresAt: now.Add(ttl)}
	return &localLock{locker: l, key: key, token: l.token}, nil
}

type localLock struct {
	locker *LocalLocker
	key    string
	token  uint64
}

func (l *localLock) Key() string { return l.key }

func (l *localLock) Refresh(_ context.Context, ttl time.Duration) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()

	now := l.locker.now()
	e, ok := l.locker.held[l.key]
	if !ok || e.token != l.token || !now.Before(e.expiresAt) {
		return ErrNotHeld
	}
	l.locker.held[l.key] = localEntry{token: l.token, expiresAt: now.Add(ttl)}
	return nil
}

func (l *localLock) Release(_ context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()

	e, ok := l.locker.held[l.key]
	if !ok || e.token != l.token || !l.locker.now().Before(e.expiresAt) {
		return ErrNotHeld
	}
	delete(l.locker.held, l.key)
	return nil
}
