package app

import (
	"context"
	"time"

	"github.com/DoyleJ11/queue-veto-backend/internal/events"
	"github.com/DoyleJ11/queue-veto-backend/internal/hub"
	"go.uber.org/zap"
)

const relayTimeout = 5 * time.Second

// relayPush hands a queue service push to the player's coordinator. Key is
// the player id; the payload carries lobby_id or reason.
func relayPush(ctx context.Context, h *hub.Hub, e events.Event, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, relayTimeout)
	defer cancel()

	c := h.Coordinator(ctx, e.Key)
	if c == nil {
		log.Warn("dropping push without coordinator", zap.String("type", string(e.Type)), zap.String("player_id", e.Key))
		return
	}
	fields, _ := e.Payload.(map[string]any)

	var err error
	switch e.Type {
	case events.ExternalMatched:
		lobbyID, _ := fields["lobby_id"].(string)
		err = c.OnExternalMatch(ctx, lobbyID)
	case events.ExternalCancelled:
		reason, _ := fields["reason"].(string)
		if reason == "" {
			reason = "queue_cancelled"
		}
		err = c.OnExternalCancel(ctx, reason)
	default:
		return
	}
	if err != nil {
		log.Warn("push rejected", zap.String("type", string(e.Type)), zap.String("player_id", e.Key), zap.Error(err))
	}
}
