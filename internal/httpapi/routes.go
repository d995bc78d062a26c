package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/DoyleJ11/queue-veto-backend/internal/auth"
	"github.com/DoyleJ11/queue-veto-backend/internal/events"
	"github.com/DoyleJ11/queue-veto-backend/internal/hub"
	"github.com/DoyleJ11/queue-veto-backend/internal/matchmaking"
	"github.com/DoyleJ11/queue-veto-backend/internal/veto"
	"github.com/DoyleJ11/queue-veto-backend/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type StatsService interface {
	Get(ctx context.Context, gameID string) (matchmaking.PoolStatistics, error)
}

type Deps struct {
	Hub           *hub.Hub
	Bus           *events.Bus
	Stats         StatsService
	Auth          *auth.Verifier
	DefaultFormat string
	Logger        *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	format := d.DefaultFormat
	if format == "" {
		format = veto.DefaultFormat
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	// Public routes
	r.Post("/rooms", CreateRoom(d.Hub, format, log))
	r.Get("/rooms/{code}", GetRoom(d.Hub))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(d.Hub, log.Named("ws")))

	// Player routes
	r.Group(func(r chi.Router) {
		r.Use(d.Auth.Middleware)

		r.Route("/queue", func(r chi.Router) {
			r.Get("/", QueueState(d.Hub))
			r.Post("/join", JoinQueue(d.Hub))
			r.Post("/leave", LeaveQueue(d.Hub))
			r.Post("/matched", Matched(d.Hub))
			r.Post("/accept", Accept(d.Hub))
			r.Post("/decline", Decline(d.Hub))
			r.Post("/poll", Poll(d.Hub))
			r.Get("/events", ws.EventsHandler(d.Bus, log.Named("ws")))
		})
		if d.Stats != nil {
			r.Get("/stats/{gameID}", Stats(d.Stats))
		}
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
