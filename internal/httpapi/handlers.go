package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/DoyleJ11/queue-veto-backend/internal/auth"
	"github.com/DoyleJ11/queue-veto-backend/internal/hub"
	"github.com/DoyleJ11/queue-veto-backend/internal/matchmaking"
	"github.com/DoyleJ11/queue-veto-backend/internal/room"
	"github.com/DoyleJ11/queue-veto-backend/internal/veto"
	"github.com/DoyleJ11/queue-veto-backend/pkg/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const codeAttempts = 10

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

func CreateRoom(h *hub.Hub, defaultFormat string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CreateRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body", "")
			return
		}
		format := req.Format
		if format == "" {
			format = defaultFormat
		}
		state, err := veto.Start(req.Pool, veto.ParseFormat(format))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "")
			return
		}

		var code string
		for range codeAttempts {
			c, err := GenerateCode()
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to generate code", "")
				return
			}
			if h.Room(r.Context(), c) == nil {
				code = c
				break
			}
			log.Debug("collision on code, regenerating", zap.String("code", c))
		}
		if code == "" {
			writeError(w, http.StatusServiceUnavailable, "no free room code", "")
			return
		}

		rm := h.CreateRoom(r.Context(), code, state)
		if rm == nil {
			writeError(w, http.StatusInternalServerError, "failed to create room", "")
			return
		}
		v, ok := roomView(r, rm)
		if !ok {
			writeError(w, http.StatusServiceUnavailable, "room closed", "")
			return
		}
		writeJSON(w, http.StatusCreated, types.CreateRoomResponse{Code: code, State: v.State, Deadline: deadlinePtr(v.Deadline)})
	}
}

func GetRoom(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		rm := h.Room(r.Context(), code)
		if rm == nil {
			writeError(w, http.StatusNotFound, "room not found", "")
			return
		}
		v, ok := roomView(r, rm)
		if !ok {
			writeError(w, http.StatusNotFound, "room not found", "")
			return
		}
		writeJSON(w, http.StatusOK, types.RoomResponse{
			Code:       code,
			Version:    v.Version,
			NumClients: v.NumClients,
			State:      v.State,
			Deadline:   deadlinePtr(v.Deadline),
		})
	}
}

func roomView(r *http.Request, rm *room.Room) (room.View, bool) {
	reply := make(chan room.View, 1)
	if !rm.Send(r.Context(), room.GetState{Reply: reply}) {
		return room.View{}, false
	}
	select {
	case v := <-reply:
		return v, true
	case <-rm.Done():
		return room.View{}, false
	case <-r.Context().Done():
		return room.View{}, false
	}
}

func deadlinePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// coordinator resolves the authenticated player's coordinator.
func coordinator(w http.ResponseWriter, r *http.Request, h *hub.Hub) (*matchmaking.Coordinator, string, bool) {
	playerID := auth.PlayerID(r.Context())
	if playerID == "" {
		writeError(w, http.StatusUnauthorized, matchmaking.ErrUnauthenticated.Error(), "")
		return nil, "", false
	}
	c := h.Coordinator(r.Context(), playerID)
	if c == nil {
		writeError(w, http.StatusServiceUnavailable, "matchmaking unavailable", "")
		return nil, "", false
	}
	return c, playerID, true
}

func QueueState(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _, ok := coordinator(w, r, h)
		if !ok {
			return
		}
		v, err := c.State(r.Context())
		if err != nil {
			writeCoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func JoinQueue(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, playerID, ok := coordinator(w, r, h)
		if !ok {
			return
		}
		var prefs matchmaking.QueuePreferences
		if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body", "")
			return
		}
		session, err := c.JoinQueue(r.Context(), playerID, prefs)
		if err != nil {
			writeCoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, session)
	}
}

func LeaveQueue(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _, ok := coordinator(w, r, h)
		if !ok {
			return
		}
		left, err := c.LeaveQueue(r.Context())
		if err != nil {
			writeCoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.LeaveResponse{OK: left})
	}
}

// Matched is called by the queue service, or a host relaying its push, once
// the session has a lobby.
func Matched(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _, ok := coordinator(w, r, h)
		if !ok {
			return
		}
		var req types.MatchedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body", "")
			return
		}
		if err := c.OnExternalMatch(r.Context(), req.LobbyID); err != nil {
			writeCoreError(w, err)
			return
		}
		writeState(w, r, c)
	}
}

func Accept(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, playerID, ok := coordinator(w, r, h)
		if !ok {
			return
		}
		if err := c.AcceptMatch(r.Context(), playerID); err != nil {
			writeCoreError(w, err)
			return
		}
		writeState(w, r, c)
	}
}

func Decline(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _, ok := coordinator(w, r, h)
		if !ok {
			return
		}
		if err := c.DeclineMatch(r.Context()); err != nil {
			writeCoreError(w, err)
			return
		}
		writeState(w, r, c)
	}
}

func Poll(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _, ok := coordinator(w, r, h)
		if !ok {
			return
		}
		if err := c.PollNow(r.Context()); err != nil {
			writeCoreError(w, err)
			return
		}
		writeState(w, r, c)
	}
}

func Stats(stats StatsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := stats.Get(r.Context(), chi.URLParam(r, "gameID"))
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error(), "")
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeState(w http.ResponseWriter, r *http.Request, c *matchmaking.Coordinator) {
	v, err := c.State(r.Context())
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// writeCoreError maps coordinator and veto errors to HTTP statuses. Anything
// unrecognised came from an external service.
func writeCoreError(w http.ResponseWriter, err error) {
	var verr *matchmaking.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error(), verr.Field)
	case errors.Is(err, matchmaking.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err.Error(), "")
	case errors.Is(err, matchmaking.ErrPlayerMismatch):
		writeError(w, http.StatusForbidden, err.Error(), "")
	case errors.Is(err, matchmaking.ErrAlreadyQueued),
		errors.Is(err, matchmaking.ErrInvalidTransition),
		errors.Is(err, matchmaking.ErrNoLobby),
		errors.Is(err, matchmaking.ErrLeaveRejected),
		errors.Is(err, matchmaking.ErrReadyRejected),
		errors.Is(err, matchmaking.ErrReadyCheckExpired),
		errors.Is(err, veto.ErrInvalidAction):
		writeError(w, http.StatusConflict, err.Error(), "")
	case errors.Is(err, matchmaking.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error(), "")
	default:
		writeError(w, http.StatusBadGateway, err.Error(), "")
	}
}

func writeError(w http.ResponseWriter, status int, msg, field string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Field: field})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
