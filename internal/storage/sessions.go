package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("session was not found")

// SessionCache keeps encoded snapshots of live games so they survive a
// server restart.
type SessionCache interface {
	Put(ctx context.Context, id string, data []byte) error
	Get(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
}

type RedisSessionCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisSessionCache(ctx context.Context, addr string, ttl time.Duration) (*RedisSessionCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return &RedisSessionCache{client: client, prefix: "connectfour:game:", ttl: ttl}, nil
}

func (r *RedisSessionCache) Put(ctx context.Context, id string, data []byte) error {
	return r.client.Set(ctx, r.prefix+id, data, r.ttl).Err()
}

func (r *RedisSessionCache) Get(ctx context.Context, id string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	return data, err
}

func (r *RedisSessionCache) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.prefix+id).Err()
}

func (r *RedisSessionCache) Close() error {
	return r.client.Close()
}

// MemorySessionCache is a process-local SessionCache. Entries do not expire.
type MemorySessionCache struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemorySessionCache() *MemorySessionCache {
	return &MemorySessionCache{data: make(map[string][]byte)}
}

func (m *MemorySessionCache) Put(_ context.Context, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = append([]byte(nil), data...)
	return nil
}

func (m *MemorySessionCache) Get(_ context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return data, nil
}

func (m *MemorySessionCache) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}
