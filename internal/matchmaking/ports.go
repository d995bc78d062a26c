package matchmaking

import (
	"context"
	"slices"
	"time"
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusSearching  Status = "searching"
	StatusMatched    Status = "matched"
	StatusReady      Status = "ready"
	StatusConnecting Status = "connecting"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transition can happen for the session.
func (s Status) Terminal() bool {
	return s == StatusConnecting || s == StatusCancelled
}

type QueuePreferences struct {
	GameID      string   `json:"game_id"`
	ModeID      string   `json:"mode_id"`
	MapIDs      []string `json:"map_ids"`
	Regions     []string `json:"regions"`
	MaxPingMs   int      `json:"max_ping_ms"`
	CrossPlay   bool     `json:"cross_play"`
	SkillMin    int      `json:"skill_min"`
	SkillMax    int      `json:"skill_max"`
	VetoEnabled bool     `json:"veto_enabled"`
}

func (p QueuePreferences) Validate() error {
	switch {
	case p.GameID == "":
		return &ValidationError{Field: "game_id", Reason: "required"}
	case p.ModeID == "":
		return &ValidationError{Field: "mode_id", Reason: "required"}
	case p.MaxPingMs <= 0:
		return &ValidationError{Field: "max_ping_ms", Reason: "must be positive"}
	case p.SkillMin > p.SkillMax:
		return &ValidationError{Field: "skill_min", Reason: "must not exceed skill_max"}
	case p.VetoEnabled && len(p.MapIDs) == 0:
		return &ValidationError{Field: "map_ids", Reason: "required when veto is enabled"}
	}
	return nil
}

func (p QueuePreferences) clone() QueuePreferences {
	p.MapIDs = slices.Clone(p.MapIDs)
	p.Regions = slices.Clone(p.Regions)
	return p
}

// QueueSession is one queue attempt.
type QueueSession struct {
	ID                   string    `json:"id"`
	Status               Status    `json:"status"`
	LobbyID              string    `json:"lobby_id,omitempty"`
	EstimatedWaitSeconds *int      `json:"estimated_wait_seconds,omitempty"`
	JoinedAt             time.Time `json:"joined_at"`
}

// ReadyCheck exists while a session is matched or ready.
type ReadyCheck struct {
	Deadline  time.Time     `json:"deadline"`
	Remaining time.Duration `json:"remaining"`
	Accepted  bool          `json:"accepted"`
	Expired   bool          `json:"expired"`
}

type JoinResult struct {
	SessionID            string `json:"session_id"`
	EstimatedWaitSeconds *int   `json:"estimated_wait_seconds,omitempty"`
}

// PoolStatistics is advisory display data; it is not tied to any session.
type PoolStatistics struct {
	GameID             string `json:"game_id"`
	TotalPlayers       int    `json:"total_players"`
	AverageWaitSeconds int    `json:"average_wait_seconds"`
}

type LobbyStatus string

const (
	LobbyForming   LobbyStatus = "forming"
	LobbyReady     LobbyStatus = "ready"
	LobbyStarting  LobbyStatus = "starting"
	LobbyStarted   LobbyStatus = "started"
	LobbyCancelled LobbyStatus = "cancelled"
)

type PlayerSlot struct {
	PlayerID string `json:"player_id"`
	MMR      int    `json:"mmr"`
}

// LobbySnapshot is read-only external state returned by a poll.
type LobbySnapshot struct {
	LobbyID string       `json:"lobby_id"`
	Status  LobbyStatus  `json:"status"`
	MatchID string       `json:"match_id,omitempty"`
	MapID   string       `json:"map_id,omitempty"`
	Slots   []PlayerSlot `json:"player_slots"`
}

// QueueClient talks to the external matchmaking service.
type QueueClient interface {
	Join(ctx context.Context, playerID string, prefs QueuePreferences) (JoinResult, error)
	Leave(ctx context.Context, sessionID string) (bool, error)
	PoolStats(ctx context.Context, gameID string) (PoolStatistics, error)
}

// LobbyClient talks to the external lobby service. PollStatus is a single
// call; repetition belongs to the Coordinator.
type LobbyClient interface {
	SetReady(ctx context.Context, lobbyID, playerID string) (bool, error)
	PollStatus(ctx context.Context, lobbyID string) (LobbySnapshot, error)
}

// StatsReader serves cached pool statistics without calling the queue service.
type StatsReader interface {
	Cached(ctx context.Context, gameID string) (PoolStatistics, bool)
}
