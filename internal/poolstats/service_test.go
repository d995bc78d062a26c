package poolstats

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DoyleJ11/queue-veto-backend/internal/clock"
	"github.com/DoyleJ11/queue-veto-backend/internal/matchmaking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type countingFetcher struct {
	calls atomic.Int32
	gate  chan struct{}
	err   error
}

func (f *countingFetcher) PoolStats(_ context.Context, gameID string) (matchmaking.PoolStatistics, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return matchmaking.PoolStatistics{}, f.err
	}
	return matchmaking.PoolStatistics{GameID: gameID, TotalPlayers: 812, AverageWaitSeconds: 95}, nil
}

func TestService_CachesUntilTTL(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	f := &countingFetcher{}
	s := NewService(f, NewMemoryStore(clk), 30*time.Second, zaptest.NewLogger(t))
	ctx := context.Background()

	_, ok := s.Cached(ctx, "cs2")
	assert.False(t, ok)

	stats, err := s.Get(ctx, "cs2")
	require.NoError(t, err)
	assert.Equal(t, 95, stats.AverageWaitSeconds)

	_, err = s.Get(ctx, "cs2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.calls.Load())

	cached, ok := s.Cached(ctx, "cs2")
	require.True(t, ok)
	assert.Equal(t, 812, cached.TotalPlayers)

	clk.Advance(30 * time.Second)
	_, ok = s.Cached(ctx, "cs2")
	assert.False(t, ok)
	_, err = s.Get(ctx, "cs2")
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestService_ConcurrentMissesShareOneFetch(t *testing.T) {
	f := &countingFetcher{gate: make(chan struct{})}
	s := NewService(f, NewMemoryStore(nil), time.Minute, zaptest.NewLogger(t))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Get(context.Background(), "valorant")
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.EqualValues(t, 1, f.calls.Load())
}

func TestService_FetchErrorIsNotCached(t *testing.T) {
	boom := errors.New("queue service down")
	f := &countingFetcher{err: boom}
	s := NewService(f, NewMemoryStore(nil), time.Minute, zaptest.NewLogger(t))

	_, err := s.Get(context.Background(), "cs2")
	require.ErrorIs(t, err, boom)
	_, ok := s.Cached(context.Background(), "cs2")
	assert.False(t, ok)
}

func TestService_RunRefreshesConfiguredGames(t *testing.T) {
	f := &countingFetcher{}
	s := NewService(f, NewMemoryStore(nil), time.Minute, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, []string{"cs2", "valorant"}, 10*time.Millisecond) }()

	require.Eventually(t, func() bool { return f.calls.Load() >= 4 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	_, ok := s.Cached(context.Background(), "valorant")
	assert.True(t, ok)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	store, err := NewRedisStore(ctx, RedisConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	want := matchmaking.PoolStatistics{GameID: "test-" + t.Name(), TotalPlayers: 3, AverageWaitSeconds: 12}
	require.NoError(t, store.Set(ctx, want, time.Minute))

	got, ok, err := store.Get(ctx, want.GameID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	_, ok, err = store.Get(ctx, "missing-game")
	require.NoError(t, err)
	assert.False(t, ok)
}
