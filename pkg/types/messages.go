package types

import (
	"time"

	"github.com/DoyleJ11/queue-veto-backend/internal/events"
	"github.com/DoyleJ11/queue-veto-backend/internal/veto"
)

// Client -> Server
const (
	MsgVetoAction = "VetoAction"
	MsgPing       = "Ping"
)

// Server -> Client
const (
	MsgStateSnapshot = "StateSnapshot"
	MsgEvent         = "Event"
	MsgError         = "Error"
	MsgPong          = "Pong"
)

type ClientMessage struct {
	Type  string `json:"type"` // "VetoAction" | "Ping"
	Team  int    `json:"team"`
	MapID string `json:"map_id,omitempty"`
}

type ServerMessage struct {
	Type        string        `json:"type"` // "StateSnapshot" | "Event" | "Error" | "Pong"
	Version     int           `json:"version,omitempty"`
	Code        string        `json:"code,omitempty"`
	State       *veto.State   `json:"state,omitempty"`
	Deadline    *time.Time    `json:"deadline,omitempty"`
	RemainingMs int64         `json:"remaining_ms,omitempty"`
	Events      []veto.Event  `json:"events,omitempty"`
	Event       *events.Event `json:"event,omitempty"`
	Error       string        `json:"error,omitempty"`
}

type CreateRoomRequest struct {
	Pool   []string `json:"pool"`
	Format string   `json:"format,omitempty"`
}

type CreateRoomResponse struct {
	Code     string     `json:"code"`
	State    veto.State `json:"state"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

type RoomResponse struct {
	Code       string     `json:"code"`
	Version    int        `json:"version"`
	NumClients int        `json:"num_clients"`
	State      veto.State `json:"state"`
	Deadline   *time.Time `json:"deadline,omitempty"`
}

type MatchedRequest struct {
	LobbyID string `json:"lobby_id"`
}

type LeaveResponse struct {
	OK bool `json:"ok"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
