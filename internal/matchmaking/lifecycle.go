package matchmaking

import (
	"context"
	"errors"
	"math"

	"github.com/DoyleJ11/queue-veto-backend/internal/clock"
	"github.com/DoyleJ11/queue-veto-backend/internal/events"
	"go.uber.org/zap"
)

func (c *Coordinator) handleJoin(m joinMsg) (QueueSession, error) {
	if c.cur != nil && !c.cur.session.Status.Terminal() {
		return QueueSession{}, ErrAlreadyQueued
	}
	if m.playerID == "" {
		return QueueSession{}, ErrUnauthenticated
	}
	if err := m.prefs.Validate(); err != nil {
		return QueueSession{}, err
	}

	res, err := c.queue.Join(m.ctx, m.playerID, m.prefs.clone())
	if err != nil {
		c.log.Warn("queue join failed", zap.String("player_id", m.playerID), zap.Error(err))
		return QueueSession{}, err
	}

	// A finished attempt is only discarded once the new one exists.
	c.reset()
	c.attempts++
	l := &lifecycle{
		tok: token{sessionID: res.SessionID, attempt: c.attempts},
		session: QueueSession{
			ID:                   res.SessionID,
			Status:               StatusSearching,
			EstimatedWaitSeconds: res.EstimatedWaitSeconds,
			JoinedAt:             c.clock.Now(),
		},
		playerID: m.playerID,
		prefs:    m.prefs.clone(),
	}
	c.cur = l

	c.log.Info("joined queue",
		zap.String("player_id", l.playerID),
		zap.String("session_id", l.session.ID),
		zap.String("game_id", l.prefs.GameID),
		zap.String("mode_id", l.prefs.ModeID),
	)
	c.emit(l, events.QueueStarted, QueueStartedPayload{SessionID: l.session.ID, Preferences: l.prefs.clone()})
	return l.session, nil
}

func (c *Coordinator) handleLeave(ctx context.Context) (bool, error) {
	l := c.cur
	if l == nil {
		return true, nil
	}
	if l.session.Status.Terminal() {
		c.reset()
		return true, nil
	}

	ok, err := c.queue.Leave(ctx, l.session.ID)
	if err != nil {
		c.log.Warn("queue leave failed", zap.String("session_id", l.session.ID), zap.Error(err))
		return false, err
	}
	if !ok {
		return false, ErrLeaveRejected
	}
	c.finishLeave(l, ReasonUser)
	return true, nil
}

func (c *Coordinator) handleExternalMatch(lobbyID string) error {
	if c.status() != StatusSearching {
		return transitionError("match", c.status())
	}
	if lobbyID == "" {
		return ErrNoLobby
	}

	l := c.cur
	now := c.clock.Now()
	l.session.Status = StatusMatched
	l.session.LobbyID = lobbyID
	l.ready = &ReadyCheck{
		Deadline:  now.Add(c.cfg.ReadyCheckTimeout),
		Remaining: c.cfg.ReadyCheckTimeout,
	}
	c.scheduleCountdown(l)

	c.log.Info("match found, ready check started",
		zap.String("session_id", l.session.ID),
		zap.String("lobby_id", lobbyID),
		zap.Time("deadline", l.ready.Deadline),
	)
	c.emit(l, events.ReadyCheckStarted, c.readyCheckPayload(l))
	return nil
}

func (c *Coordinator) handleExternalCancel(reason string) error {
	l := c.cur
	if l == nil || l.session.Status.Terminal() {
		return transitionError("cancel", c.status())
	}
	c.cancelSession(l, reason)
	return nil
}

func (c *Coordinator) handleAccept(ctx context.Context, playerID string) error {
	l := c.cur
	if l == nil || l.session.LobbyID == "" {
		return ErrNoLobby
	}
	if playerID == "" {
		return ErrUnauthenticated
	}
	if playerID != l.playerID {
		return ErrPlayerMismatch
	}
	switch l.session.Status {
	case StatusMatched:
		if l.ready != nil && l.ready.Expired {
			return ErrReadyCheckExpired
		}
	case StatusReady, StatusConnecting:
		return nil
	default:
		return transitionError("accept", l.session.Status)
	}

	ok, err := c.lobby.SetReady(ctx, l.session.LobbyID, playerID)
	if err != nil {
		c.log.Warn("set ready failed", zap.String("lobby_id", l.session.LobbyID), zap.Error(err))
		return err
	}
	if !ok {
		return ErrReadyRejected
	}

	l.ready.Accepted = true
	l.session.Status = StatusReady
	stopTimer(&l.countdown)

	c.log.Info("match accepted",
		zap.String("session_id", l.session.ID),
		zap.String("lobby_id", l.session.LobbyID),
	)
	l.polling = true
	c.schedulePoll(l)
	return nil
}

func (c *Coordinator) handleDecline() error {
	l := c.cur
	if l == nil || (l.session.Status != StatusMatched && l.session.Status != StatusReady) {
		return transitionError("decline", c.status())
	}
	c.log.Info("match declined", zap.String("session_id", l.session.ID))
	c.finishLeave(l, ReasonDeclined)
	return nil
}

func (c *Coordinator) scheduleCountdown(l *lifecycle) {
	d := c.cfg.CountdownTick
	if remaining := l.ready.Deadline.Sub(c.clock.Now()); remaining < d {
		d = max(remaining, 0)
	}
	tok := l.tok
	l.countdown = c.clock.AfterFunc(d, func() { c.post(countdownTick{tok: tok}) })
}

func (c *Coordinator) handleCountdownTick(tok token) {
	l, ok := c.current(tok)
	if !ok || l.session.Status != StatusMatched || l.ready == nil || l.ready.Accepted {
		return
	}
	l.countdown = nil

	remaining := l.ready.Deadline.Sub(c.clock.Now())
	if remaining > 0 {
		l.ready.Remaining = remaining
		c.emit(l, events.ReadyCheckTick, c.readyCheckPayload(l))
		c.scheduleCountdown(l)
		return
	}

	l.ready.Remaining = 0
	l.ready.Expired = true
	c.log.Info("ready check expired, declining",
		zap.String("session_id", l.session.ID),
		zap.String("lobby_id", l.session.LobbyID),
		zap.String("source", "timeout"),
	)
	c.emit(l, events.ReadyCheckExpired, c.readyCheckPayload(l))

	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.PortTimeout)
	defer cancel()
	left, err := c.queue.Leave(ctx, l.session.ID)
	if err == nil && !left {
		err = ErrLeaveRejected
	}
	if err != nil {
		c.log.Error("auto-decline leave failed", zap.String("session_id", l.session.ID), zap.Error(err))
		return
	}
	c.finishLeave(l, ReasonReadyCheckTimeout)
}

func (c *Coordinator) schedulePoll(l *lifecycle) {
	tok := l.tok
	l.pollTimer = c.clock.AfterFunc(c.cfg.PollInterval, func() { c.post(pollTick{tok: tok}) })
}

func (c *Coordinator) handlePollTick(tok token) {
	l, ok := c.current(tok)
	if !ok {
		return
	}
	l.pollTimer = nil
	// An in-flight manual poll reschedules the loop when it lands.
	if !l.polling || l.inFlight || l.session.Status != StatusReady {
		return
	}
	c.startPoll(l, nil, nil)
}

// startPoll runs one lobby poll off the loop goroutine. A manual poll carries
// the caller's context and reply channel; loop polls pass nil for both.
func (c *Coordinator) startPoll(l *lifecycle, caller context.Context, reply chan error) {
	parent := caller
	if parent == nil {
		parent = c.ctx
	}
	ctx, cancel := context.WithTimeout(parent, c.cfg.PortTimeout)
	l.inFlight = true
	l.pollCancel = cancel
	tok, lobbyID := l.tok, l.session.LobbyID
	go func() {
		snap, err := c.lobby.PollStatus(ctx, lobbyID)
		cancel()
		c.post(pollResult{tok: tok, snap: snap, err: err, caller: caller, reply: reply})
	}()
}

func (c *Coordinator) handlePollResult(r pollResult) {
	l, ok := c.current(r.tok)
	if !ok {
		r.respond(nil)
		return
	}
	l.inFlight = false
	l.pollCancel = nil
	if l.session.Status != StatusReady {
		r.respond(nil)
		return
	}
	if r.manual() {
		if r.err != nil && r.caller.Err() != nil {
			// The caller gave up; the loop is left as it was.
			c.keepPolling(l)
			r.respond(r.err)
			return
		}
		if r.err == nil {
			l.polling = true
		}
	} else if !l.polling {
		return
	}
	r.respond(c.applyPoll(l, r.snap, r.err))
}

// handlePollNow starts one manual poll. It replies immediately when there is
// nothing to poll, otherwise once the result has been applied.
func (c *Coordinator) handlePollNow(m pollNowMsg) {
	l := c.cur
	if l == nil || l.session.Status != StatusReady || l.inFlight {
		m.reply <- nil
		return
	}
	c.startPoll(l, m.ctx, m.reply)
}

// applyPoll reacts to one poll outcome. An error pauses polling without
// touching the session.
func (c *Coordinator) applyPoll(l *lifecycle, snap LobbySnapshot, err error) error {
	if err != nil {
		l.polling = false
		stopTimer(&l.pollTimer)
		if !errors.Is(err, context.Canceled) {
			c.log.Warn("lobby poll failed, polling paused",
				zap.String("session_id", l.session.ID),
				zap.String("lobby_id", l.session.LobbyID),
				zap.Error(err),
			)
			c.emit(l, events.PollFailed, PollFailedPayload{SessionID: l.session.ID, LobbyID: l.session.LobbyID, Error: err.Error()})
		}
		return err
	}

	switch {
	case (snap.Status == LobbyStarting || snap.Status == LobbyStarted) && snap.MatchID != "":
		c.connect(l, snap)
	case snap.Status == LobbyCancelled:
		c.cancelSession(l, "lobby_cancelled")
	default:
		c.keepPolling(l)
	}
	return nil
}

// keepPolling makes sure a live loop has its next tick scheduled.
func (c *Coordinator) keepPolling(l *lifecycle) {
	if l.polling && l.pollTimer == nil {
		c.schedulePoll(l)
	}
}

func (c *Coordinator) connect(l *lifecycle, snap LobbySnapshot) {
	c.teardown(l)
	l.session.Status = StatusConnecting
	l.ready = nil
	if l.announced {
		return
	}
	l.announced = true

	mode := c.cfg.Modes[l.prefs.ModeID]
	duration := mode.EstimatedDuration
	if duration <= 0 {
		duration = DefaultMatchDuration
	}
	mapID := snap.MapID
	if mapID == "" && len(l.prefs.MapIDs) > 0 {
		mapID = l.prefs.MapIDs[0]
	}

	payload := MatchFoundPayload{
		MatchID:           snap.MatchID,
		GameID:            l.prefs.GameID,
		Mode:              l.prefs.ModeID,
		Map:               mapID,
		Teams:             partitionTeams(snap.Slots, mode.TeamSize),
		EstimatedDuration: duration,
	}
	c.log.Info("match starting",
		zap.String("session_id", l.session.ID),
		zap.String("match_id", snap.MatchID),
		zap.Int("teams", len(payload.Teams)),
	)
	c.emit(l, events.MatchFound, payload)
}

func (c *Coordinator) cancelSession(l *lifecycle, reason string) {
	c.teardown(l)
	l.session.Status = StatusCancelled
	l.ready = nil
	if l.announced {
		return
	}
	l.announced = true
	c.log.Info("queue cancelled", zap.String("session_id", l.session.ID), zap.String("reason", reason))
	c.emit(l, events.QueueCancelled, QueueCancelledPayload{SessionID: l.session.ID, LobbyID: l.session.LobbyID, Reason: reason})
}

func (c *Coordinator) finishLeave(l *lifecycle, reason string) {
	c.teardown(l)
	c.cur = nil
	c.log.Info("left queue", zap.String("session_id", l.session.ID), zap.String("reason", reason))
	c.emit(l, events.QueueLeft, QueueLeftPayload{SessionID: l.session.ID, Reason: reason})
}

func (c *Coordinator) reset() {
	if c.cur == nil {
		return
	}
	c.teardown(c.cur)
	c.cur = nil
}

// teardown cancels every timer and poll owned by l.
func (c *Coordinator) teardown(l *lifecycle) {
	stopTimer(&l.countdown)
	stopTimer(&l.pollTimer)
	if l.pollCancel != nil {
		l.pollCancel()
		l.pollCancel = nil
	}
	l.polling = false
	l.inFlight = false
}

func (c *Coordinator) readyCheckPayload(l *lifecycle) ReadyCheckPayload {
	return ReadyCheckPayload{
		SessionID:        l.session.ID,
		LobbyID:          l.session.LobbyID,
		Deadline:         l.ready.Deadline,
		RemainingSeconds: int(math.Ceil(l.ready.Remaining.Seconds())),
	}
}

func stopTimer(t *clock.Timer) {
	if *t == nil {
		return
	}
	(*t).Stop()
	*t = nil
}
