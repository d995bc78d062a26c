package poolstats

import (
	"context"
	"time"

	"github.com/DoyleJ11/queue-veto-backend/internal/matchmaking"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const DefaultTTL = 30 * time.Second

// Fetcher is the part of the queue port that reports pool statistics.
type Fetcher interface {
	PoolStats(ctx context.Context, gameID string) (matchmaking.PoolStatistics, error)
}

// Service reads pool statistics through a cache. Concurrent misses for the
// same game share one fetch.
type Service struct {
	fetcher Fetcher
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	log     *zap.Logger
}

func NewService(fetcher Fetcher, store Store, ttl time.Duration, log *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{fetcher: fetcher, store: store, ttl: ttl, log: log}
}

// Cached returns cached statistics without calling the queue service.
func (s *Service) Cached(ctx context.Context, gameID string) (matchmaking.PoolStatistics, bool) {
	stats, ok, err := s.store.Get(ctx, gameID)
	if err != nil {
		s.log.Warn("pool stats cache read failed", zap.String("game_id", gameID), zap.Error(err))
		return matchmaking.PoolStatistics{}, false
	}
	return stats, ok
}

// Get returns cached statistics, fetching them on a miss.
func (s *Service) Get(ctx context.Context, gameID string) (matchmaking.PoolStatistics, error) {
	if stats, ok := s.Cached(ctx, gameID); ok {
		return stats, nil
	}
	return s.Refresh(ctx, gameID)
}

// Refresh fetches statistics from the queue service and caches them.
func (s *Service) Refresh(ctx context.Context, gameID string) (matchmaking.PoolStatistics, error) {
	v, err, _ := s.group.Do(gameID, func() (any, error) {
		stats, err := s.fetcher.PoolStats(ctx, gameID)
		if err != nil {
			return nil, err
		}
		stats.GameID = gameID
		if err := s.store.Set(ctx, stats, s.ttl); err != nil {
			s.log.Warn("pool stats cache write failed", zap.String("game_id", gameID), zap.Error(err))
		}
		return stats, nil
	})
	if err != nil {
		return matchmaking.PoolStatistics{}, err
	}
	return v.(matchmaking.PoolStatistics), nil
}

// Run refreshes every game on each interval until ctx is done. Failures are
// logged and the previous cache entry is left to expire.
func (s *Service) Run(ctx context.Context, games []string, interval time.Duration) error {
	if len(games) == 0 || interval <= 0 {
		<-ctx.Done()
		return nil
	}
	s.refreshAll(ctx, games)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.refreshAll(ctx, games)
		}
	}
}

func (s *Service) refreshAll(ctx context.Context, games []string) {
	for _, game := range games {
		if _, err := s.Refresh(ctx, game); err != nil && ctx.Err() == nil {
			s.log.Warn("pool stats refresh failed", zap.String("game_id", game), zap.Error(err))
		}
	}
}
