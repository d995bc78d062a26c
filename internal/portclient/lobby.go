package portclient

import (
	"context"
	"net/url"

	"github.com/DoyleJ11/queue-veto-backend/internal/matchmaking"
)

// Lobby implements matchmaking.LobbyClient against the lobby service.
type Lobby struct {
	c *client
}

var _ matchmaking.LobbyClient = (*Lobby)(nil)

func NewLobby(cfg Config) *Lobby {
	return &Lobby{c: newClient("lobby", cfg)}
}

type readyRequest struct {
	PlayerID string `json:"player_id"`
}

func (l *Lobby) SetReady(ctx context.Context, lobbyID, playerID string) (bool, error) {
	var res okResponse
	if err := l.c.post(ctx, "/lobbies/"+url.PathEscape(lobbyID)+"/ready", readyRequest{PlayerID: playerID}, &res); err != nil {
		return false, err
	}
	return res.OK, nil
}

// PollStatus is a single status read. Retries here cover transport hiccups
// only; polling cadence belongs to the coordinator.
func (l *Lobby) PollStatus(ctx context.Context, lobbyID string) (matchmaking.LobbySnapshot, error) {
	var snap matchmaking.LobbySnapshot
	err := l.c.get(ctx, "/lobbies/"+url.PathEscape(lobbyID), &snap)
	return snap, err
}
