package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/DoyleJ11/queue-veto-backend/internal/hub"
	"github.com/DoyleJ11/queue-veto-backend/internal/room"
	"github.com/DoyleJ11/queue-veto-backend/internal/veto"
	"github.com/DoyleJ11/queue-veto-backend/pkg/types"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	writeTimeout = 3 * time.Second
	readTimeout  = 60 * time.Second

	spectator = -1
)

// Handler joins a client to the veto room named by the "code" query
// parameter, streams snapshots out and feeds actions in. The "team" parameter
// seats the connection; a client without a seat only watches.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		rm := h.Room(r.Context(), code)
		if rm == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		team, err := seat(r.URL.Query().Get("team"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := uuid.NewString()
		clog := log.With(zap.String("room", code), zap.String("client_id", clientID), zap.Int("team", team))
		out := make(chan room.Snapshot, 8)

		if !rm.Send(r.Context(), room.Join{ClientID: clientID, Outbox: out}) {
			conn.Close(websocket.StatusGoingAway, "room closed")
			return
		}
		defer rm.Send(context.Background(), room.Leave{ClientID: clientID})
		clog.Debug("client joined room")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		writes := make(chan types.ServerMessage, 8)

		// Writer goroutine
		go func() {
			defer cancel()
			for {
				select {
				case <-ctx.Done():
					return
				case snap, ok := <-out:
					if !ok {
						// Room dropped us or shut down.
						conn.Close(websocket.StatusPolicyViolation, "room closed or client too slow")
						return
					}
					if err := writeJSON(ctx, conn, snapshotMessage(snap)); err != nil {
						return
					}
				case msg := <-writes:
					if err := writeJSON(ctx, conn, msg); err != nil {
						return
					}
				}
			}
		}()

		// Reader loop
		for {
			rctx, rcancel := context.WithTimeout(ctx, readTimeout)
			_, data, err := conn.Read(rctx)
			rcancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					if !errors.Is(err, context.Canceled) {
						clog.Debug("websocket read ended", zap.Error(err))
					}
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				enqueue(ctx, writes, types.ServerMessage{Type: types.MsgError, Error: "bad json"})
				continue
			}

			switch cm.Type {
			case types.MsgPing:
				enqueue(ctx, writes, types.ServerMessage{Type: types.MsgPong})
			case types.MsgVetoAction:
				if team == spectator {
					enqueue(ctx, writes, types.ServerMessage{Type: types.MsgError, Error: "spectators cannot act"})
					continue
				}
				if cm.Team != team {
					enqueue(ctx, writes, types.ServerMessage{Type: types.MsgError, Error: fmt.Sprintf("seated for team %d", team)})
					continue
				}
				reply := make(chan error, 1)
				cmd := veto.Command{Team: cm.Team, MapID: cm.MapID, Source: veto.SourceManual}
				if !rm.Send(ctx, room.Action{ClientID: clientID, Cmd: cmd, Reply: reply}) {
					return
				}
				select {
				case err := <-reply:
					if err != nil {
						enqueue(ctx, writes, types.ServerMessage{Type: types.MsgError, Error: err.Error()})
					}
				case <-rm.Done():
					return
				case <-ctx.Done():
					return
				}
			default:
				enqueue(ctx, writes, types.ServerMessage{Type: types.MsgError, Error: "unknown type"})
			}
		}
	}
}

func seat(raw string) (int, error) {
	if raw == "" {
		return spectator, nil
	}
	team, err := strconv.Atoi(raw)
	if err != nil || (team != veto.Team0 && team != veto.Team1) {
		return 0, fmt.Errorf("invalid team %q", raw)
	}
	return team, nil
}

func snapshotMessage(snap room.Snapshot) types.ServerMessage {
	state := snap.State
	msg := types.ServerMessage{
		Type:    types.MsgStateSnapshot,
		Version: snap.Version,
		Code:    snap.Code,
		State:   &state,
		Events:  snap.Events,
	}
	if !snap.Deadline.IsZero() {
		deadline := snap.Deadline
		msg.Deadline = &deadline
		msg.RemainingMs = max(time.Until(deadline).Milliseconds(), 0)
	}
	return msg
}

func enqueue(ctx context.Context, writes chan<- types.ServerMessage, msg types.ServerMessage) {
	select {
	case writes <- msg:
	case <-ctx.Done():
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}
