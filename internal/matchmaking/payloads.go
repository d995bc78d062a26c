package matchmaking

import "time"

const (
	ReasonUser              = "user"
	ReasonDeclined          = "declined"
	ReasonReadyCheckTimeout = "ready_check_timeout"
)

type QueueStartedPayload struct {
	SessionID   string           `json:"session_id"`
	Preferences QueuePreferences `json:"preferences"`
}

type QueueLeftPayload struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

type QueueCancelledPayload struct {
	SessionID string `json:"session_id"`
	LobbyID   string `json:"lobby_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type ReadyCheckPayload struct {
	SessionID        string    `json:"session_id"`
	LobbyID          string    `json:"lobby_id"`
	Deadline         time.Time `json:"deadline"`
	RemainingSeconds int       `json:"remaining_seconds"`
}

type MatchFoundPayload struct {
	MatchID           string         `json:"match_id"`
	GameID            string         `json:"game_id"`
	Mode              string         `json:"mode"`
	Map               string         `json:"map"`
	Teams             [][]PlayerSlot `json:"teams"`
	EstimatedDuration time.Duration  `json:"estimated_duration"`
}

type PollFailedPayload struct {
	SessionID string `json:"session_id"`
	LobbyID   string `json:"lobby_id"`
	Error     string `json:"error"`
}
