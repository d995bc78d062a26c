package poolstats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DoyleJ11/queue-veto-backend/internal/clock"
	"github.com/DoyleJ11/queue-veto-backend/internal/matchmaking"
	"github.com/redis/go-redis/v9"
)

// Store caches pool statistics per game with a TTL.
type Store interface {
	Get(ctx context.Context, gameID string) (matchmaking.PoolStatistics, bool, error)
	Set(ctx context.Context, stats matchmaking.PoolStatistics, ttl time.Duration) error
}

type memoryEntry struct {
	stats   matchmaking.PoolStatistics
	expires time.Time
}

type MemoryStore struct {
	mu      sync.RWMutex
	clock   clock.Clock
	entries map[string]memoryEntry
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.Real()
	}
	return &MemoryStore{clock: clk, entries: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Get(_ context.Context, gameID string) (matchmaking.PoolStatistics, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[gameID]
	if !ok || !m.clock.Now().Before(e.expires) {
		return matchmaking.PoolStatistics{}, false, nil
	}
	return e.stats, true, nil
}

func (m *MemoryStore) Set(_ context.Context, stats matchmaking.PoolStatistics, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[stats.GameID] = memoryEntry{stats: stats, expires: m.clock.Now().Add(ttl)}
	return nil
}

const redisKeyPrefix = "poolstats:"

// RedisStore shares the cache between instances.
type RedisStore struct {
	client *redis.Client
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Get(ctx context.Context, gameID string) (matchmaking.PoolStatistics, bool, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+gameID).Bytes()
	if errors.Is(err, redis.Nil) {
		return matchmaking.PoolStatistics{}, false, nil
	}
	if err != nil {
		return matchmaking.PoolStatistics{}, false, fmt.Errorf("redis get pool stats: %w", err)
	}
	var stats matchmaking.PoolStatistics
	if err := json.Unmarshal(data, &stats); err != nil {
		return matchmaking.PoolStatistics{}, false, fmt.Errorf("decode pool stats: %w", err)
	}
	return stats, true, nil
}

func (r *RedisStore) Set(ctx context.Context, stats matchmaking.PoolStatistics, ttl time.Duration) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, redisKeyPrefix+stats.GameID, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set pool stats: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
