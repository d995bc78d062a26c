package portclient

import (
	"context"
	"net/url"

	"github.com/DoyleJ11/queue-veto-backend/internal/matchmaking"
)

// Queue implements matchmaking.QueueClient against the matchmaking service.
type Queue struct {
	c *client
}

var _ matchmaking.QueueClient = (*Queue)(nil)

func NewQueue(cfg Config) *Queue {
	return &Queue{c: newClient("queue", cfg)}
}

type joinRequest struct {
	PlayerID    string                       `json:"player_id"`
	Preferences matchmaking.QueuePreferences `json:"preferences"`
}

type leaveRequest struct {
	SessionID string `json:"session_id"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

func (q *Queue) Join(ctx context.Context, playerID string, prefs matchmaking.QueuePreferences) (matchmaking.JoinResult, error) {
	var res matchmaking.JoinResult
	err := q.c.post(ctx, "/queue/join", joinRequest{PlayerID: playerID, Preferences: prefs}, &res)
	return res, err
}

func (q *Queue) Leave(ctx context.Context, sessionID string) (bool, error) {
	var res okResponse
	if err := q.c.post(ctx, "/queue/leave", leaveRequest{SessionID: sessionID}, &res); err != nil {
		return false, err
	}
	return res.OK, nil
}

func (q *Queue) PoolStats(ctx context.Context, gameID string) (matchmaking.PoolStatistics, error) {
	var res matchmaking.PoolStatistics
	err := q.c.get(ctx, "/queue/stats/"+url.PathEscape(gameID), &res)
	return res, err
}
