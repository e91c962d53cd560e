package locking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/supplier"
)

// RunLock serializes sync runs per supplier. Acquire returns a release
// function on success and supplier.ErrSyncAlreadyRunning when another run
// holds the lock.
type RunLock interface {
	Acquire(ctx context.Context, supplierID string) (release func(), err error)
}

// ---------------------------------------------------------------------------
// Redis-backed run lock
// ---------------------------------------------------------------------------

// RedisRunLock implements RunLock on Redis SETNX, suitable for deployments
// where more than one instance may trigger syncs. The TTL guards against
// locks orphaned by a crashed process.
type RedisRunLock struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

var _ RunLock = (*RedisRunLock)(nil)

// RedisConfig holds Redis connection configuration for the lock backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisRunLock connects to Redis and verifies the connection.
func NewRedisRunLock(cfg RedisConfig, ttl time.Duration) (*RedisRunLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisRunLockWithClient(client, ttl), nil
}

// NewRedisRunLockWithClient builds a lock over an existing client. Useful
// for testing or when sharing a client across components.
func NewRedisRunLockWithClient(client *redis.Client, ttl time.Duration) *RedisRunLock {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisRunLock{
		client:    client,
		keyPrefix: "sync:runlock:",
		ttl:       ttl,
	}
}

// Acquire implements RunLock with an atomic SETNX plus TTL.
func (l *RedisRunLock) Acquire(ctx context.Context, supplierID string) (func(), error) {
	key := l.keyPrefix + supplierID

	ok, err := l.client.SetNX(ctx, key, "1", l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return nil, supplier.ErrSyncAlreadyRunning
	}

	return func() {
		// Release outlives the run's context on purpose.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		l.client.Del(releaseCtx, key)
	}, nil
}

// Close closes the Redis client.
func (l *RedisRunLock) Close() error {
	return l.client.Close()
}

// ---------------------------------------------------------------------------
// In-memory run lock
// ---------------------------------------------------------------------------

// MemoryRunLock implements RunLock for single-instance deployments and tests.
type MemoryRunLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

var _ RunLock = (*MemoryRunLock)(nil)

// NewMemoryRunLock creates an in-process run lock.
func NewMemoryRunLock() *MemoryRunLock {
	return &MemoryRunLock{held: make(map[string]struct{})}
}

// Acquire implements RunLock.
func (l *MemoryRunLock) Acquire(_ context.Context, supplierID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[supplierID]; busy {
		return nil, supplier.ErrSyncAlreadyRunning
	}
	l.held[supplierID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.held, supplierID)
		})
	}, nil
}
