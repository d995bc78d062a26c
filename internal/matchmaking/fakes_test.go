package matchmaking

import (
	"context"
	"sync"

	"github.com/DoyleJ11/queue-veto-backend/internal/events"
)

type fakeQueue struct {
	mu        sync.Mutex
	joins     int
	leaves    int
	joinErr   error
	leaveErr  error
	leaveOK   bool
	sessionID string
	wait      *int
	stats     PoolStatistics
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{leaveOK: true, sessionID: "s1"}
}

func (q *fakeQueue) Join(_ context.Context, _ string, _ QueuePreferences) (JoinResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.joins++
	if q.joinErr != nil {
		return JoinResult{}, q.joinErr
	}
	return JoinResult{SessionID: q.sessionID, EstimatedWaitSeconds: q.wait}, nil
}

func (q *fakeQueue) Leave(_ context.Context, _ string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.leaves++
	if q.leaveErr != nil {
		return false, q.leaveErr
	}
	return q.leaveOK, nil
}

func (q *fakeQueue) PoolStats(_ context.Context, gameID string) (PoolStatistics, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.GameID = gameID
	return s, nil
}

func (q *fakeQueue) Joins() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.joins
}

func (q *fakeQueue) Leaves() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.leaves
}

type pollStep struct {
	snap LobbySnapshot
	err  error
}

// fakeLobby replays scripted poll results; the last one repeats.
type fakeLobby struct {
	mu       sync.Mutex
	readies  int
	readyErr error
	readyOK  bool
	script   []pollStep
	polls    int
	gate     chan struct{}
}

func newFakeLobby(script ...pollStep) *fakeLobby {
	return &fakeLobby{readyOK: true, script: script}
}

func (l *fakeLobby) SetReady(_ context.Context, _, _ string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readies++
	if l.readyErr != nil {
		return false, l.readyErr
	}
	return l.readyOK, nil
}

func (l *fakeLobby) PollStatus(ctx context.Context, lobbyID string) (LobbySnapshot, error) {
	l.mu.Lock()
	gate := l.gate
	l.polls++
	var step pollStep
	if len(l.script) > 0 {
		i := min(l.polls-1, len(l.script)-1)
		step = l.script[i]
	}
	l.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return LobbySnapshot{}, ctx.Err()
		}
	}
	step.snap.LobbyID = lobbyID
	return step.snap, step.err
}

func (l *fakeLobby) Polls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.polls
}

func (l *fakeLobby) Readies() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readies
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) Count(typ events.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func (r *recorder) Last(typ events.Type) (events.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == typ {
			return r.events[i], true
		}
	}
	return events.Event{}, false
}

func (r *recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type fakeStats struct {
	stats PoolStatistics
	ok    bool
}

func (f fakeStats) Cached(_ context.Context, _ string) (PoolStatistics, bool) {
	return f.stats, f.ok
}
