package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/DoyleJ11/queue-veto-backend/internal/audit"
	"github.com/DoyleJ11/queue-veto-backend/internal/auth"
	"github.com/DoyleJ11/queue-veto-backend/internal/clock"
	"github.com/DoyleJ11/queue-veto-backend/internal/config"
	"github.com/DoyleJ11/queue-veto-backend/internal/events"
	"github.com/DoyleJ11/queue-veto-backend/internal/httpapi"
	"github.com/DoyleJ11/queue-veto-backend/internal/hub"
	"github.com/DoyleJ11/queue-veto-backend/internal/matchmaking"
	"github.com/DoyleJ11/queue-veto-backend/internal/poolstats"
	"github.com/DoyleJ11/queue-veto-backend/internal/portclient"
	"github.com/DoyleJ11/queue-veto-backend/internal/room"
	"github.com/nats-io/nats.go"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// App owns every long-lived component of the server.
type App struct {
	Handler http.Handler
	Hub     *hub.Hub
	Stats   *poolstats.Service

	cfg      config.Config
	log      *zap.Logger
	nats     *events.NATSPublisher
	natsSubs []*nats.Subscription
	closers  []func() error
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}
	clk := clock.Real()

	bus := events.NewBus(log.Named("bus"))
	var pub events.Publisher = bus
	if cfg.NATS.URL != "" {
		np, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Prefix, log.Named("nats"))
		if err != nil {
			return nil, err
		}
		a.nats = np
		a.closers = append(a.closers, np.Close)
		pub = events.Tee(bus, np)
	}

	var store audit.Store = audit.NewMemoryStore()
	if cfg.Database.DSN != "" {
		gs, err := audit.OpenGorm(ctx, cfg.Database.DSN, cfg.Database.MaxConns, log.Named("audit"))
		if err != nil {
			return nil, a.fail(err)
		}
		a.closers = append(a.closers, gs.Close)
		store = gs
	}

	var cache poolstats.Store = poolstats.NewMemoryStore(clk)
	if cfg.Redis.Addr != "" {
		rs, err := poolstats.NewRedisStore(ctx, poolstats.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, a.fail(err)
		}
		a.closers = append(a.closers, rs.Close)
		cache = rs
	}

	queue := portclient.NewQueue(portConfig(cfg.Queue, log.Named("queue")))
	lobby := portclient.NewLobby(portConfig(cfg.Lobby, log.Named("lobby")))
	a.Stats = poolstats.NewService(queue, cache, cfg.Matchmaking.StatsTTL, log.Named("poolstats"))

	mmCfg := matchmaking.Config{
		ReadyCheckTimeout: cfg.Matchmaking.ReadyCheckTimeout,
		PollInterval:      cfg.Matchmaking.PollInterval,
		CountdownTick:     cfg.Matchmaking.CountdownTick,
		PortTimeout:       cfg.Queue.Timeout,
		IdleTTL:           cfg.Matchmaking.IdleTTL,
		Modes:             make(map[string]matchmaking.Mode, len(cfg.Matchmaking.Modes)),
	}
	for id, m := range cfg.Matchmaking.Modes {
		mmCfg.Modes[id] = matchmaking.Mode{TeamSize: m.TeamSize, EstimatedDuration: m.EstimatedDuration}
	}

	a.Hub = hub.NewHub(context.WithoutCancel(ctx), hub.Options{
		RoomOptions: func(code string) room.Options {
			return room.Options{
				StepTimeout: cfg.Veto.StepTimeout,
				Clock:       clk,
				Publisher:   pub,
				Audit:       store,
				Logger:      log.Named("room"),
				Linger:      cfg.Veto.RoomLinger,
			}
		},
		NewCoordinator: func(ctx context.Context, playerID string) *matchmaking.Coordinator {
			return matchmaking.NewCoordinator(ctx, matchmaking.Options{
				Queue:     queue,
				Lobby:     lobby,
				Clock:     clk,
				Publisher: pub,
				Stats:     a.Stats,
				Logger:    log.Named("matchmaking").With(zap.String("player_id", playerID)),
				Config:    mmCfg,
			})
		},
		Logger: log.Named("hub"),
	})

	if a.nats != nil {
		for _, typ := range []events.Type{events.ExternalMatched, events.ExternalCancelled} {
			subject := fmt.Sprintf("%s.%s.*", cfg.NATS.Prefix, typ)
			sub, err := a.nats.Subscribe(subject, func(e events.Event) {
				relayPush(context.Background(), a.Hub, e, log.Named("relay"))
			})
			if err != nil {
				return nil, multierr.Append(fmt.Errorf("subscribe %s: %w", subject, err), a.Close(ctx))
			}
			a.natsSubs = append(a.natsSubs, sub)
		}
	}

	a.Handler = httpapi.SetupRoutes(httpapi.Deps{
		Hub:           a.Hub,
		Bus:           bus,
		Stats:         a.Stats,
		Auth:          auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, log.Named("auth")),
		DefaultFormat: cfg.Veto.DefaultFormat,
		Logger:        log.Named("http"),
	})
	return a, nil
}

// RunStatsRefresher keeps pool statistics warm for the configured games.
func (a *App) RunStatsRefresher(ctx context.Context) error {
	return a.Stats.Run(ctx, a.cfg.Matchmaking.Games, a.cfg.Matchmaking.StatsRefreshInterval)
}

// Close stops the hub and releases external connections.
func (a *App) Close(ctx context.Context) error {
	var err error
	for _, sub := range a.natsSubs {
		err = multierr.Append(err, sub.Unsubscribe())
	}
	if a.Hub != nil {
		err = multierr.Append(err, a.Hub.Shutdown(ctx))
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	if err != nil {
		a.log.Warn("shutdown finished with errors", zap.Error(err))
	}
	return err
}

func (a *App) fail(err error) error {
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	return err
}

func portConfig(c config.PortConfig, log *zap.Logger) portclient.Config {
	return portclient.Config{
		BaseURL:    c.BaseURL,
		Token:      c.Token,
		Timeout:    c.Timeout,
		MaxRetries: c.MaxRetries,
		Logger:     log,
	}
}
