package ws

import (
	"net/http"

	"github.com/DoyleJ11/queue-veto-backend/internal/auth"
	"github.com/DoyleJ11/queue-veto-backend/internal/events"
	"github.com/DoyleJ11/queue-veto-backend/pkg/types"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// EventsHandler streams the authenticated player's queue events. The
// connection is write-only; anything the client sends is discarded.
func EventsHandler(bus *events.Bus, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		playerID := auth.PlayerID(r.Context())
		if playerID == "" {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		sub, unsubscribe := bus.Subscribe(playerID)
		defer unsubscribe()

		// CloseRead handles control frames and cancels ctx when the peer goes away.
		ctx := conn.CloseRead(r.Context())
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-sub:
				if !ok {
					conn.Close(websocket.StatusPolicyViolation, "subscriber too slow")
					return
				}
				if err := writeJSON(ctx, conn, types.ServerMessage{Type: types.MsgEvent, Event: &e}); err != nil {
					if ctx.Err() == nil {
						log.Debug("event write failed", zap.String("player_id", playerID), zap.Error(err))
					}
					return
				}
			}
		}
	}
}
