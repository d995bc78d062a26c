package matchmaking

import "context"

type msg interface{ isCoordinatorMsg() }

type joinMsg struct {
	ctx      context.Context
	playerID string
	prefs    QueuePreferences
	reply    chan joinReply
}

type joinReply struct {
	session QueueSession
	err     error
}

type leaveMsg struct {
	ctx   context.Context
	reply chan leaveReply
}

type leaveReply struct {
	ok  bool
	err error
}

type externalMatchMsg struct {
	lobbyID string
	reply   chan error
}

type externalCancelMsg struct {
	reason string
	reply  chan error
}

type acceptMsg struct {
	ctx      context.Context
	playerID string
	reply    chan error
}

type declineMsg struct {
	reply chan error
}

type pollNowMsg struct {
	ctx   context.Context
	reply chan error
}

type viewMsg struct {
	ctx   context.Context
	reply chan View
}

// Internal messages posted by timers and poll goroutines.

type countdownTick struct{ tok token }

type pollTick struct{ tok token }

// pollResult carries caller and reply only for a manual poll.
type pollResult struct {
	tok    token
	snap   LobbySnapshot
	err    error
	caller context.Context
	reply  chan error
}

func (r pollResult) manual() bool { return r.reply != nil }

func (r pollResult) respond(err error) {
	if r.reply != nil {
		r.reply <- err
	}
}

type idleExpired struct{ gen uint64 }

func (joinMsg) isCoordinatorMsg()           {}
func (leaveMsg) isCoordinatorMsg()          {}
func (externalMatchMsg) isCoordinatorMsg()  {}
func (externalCancelMsg) isCoordinatorMsg() {}
func (acceptMsg) isCoordinatorMsg()         {}
func (declineMsg) isCoordinatorMsg()        {}
func (pollNowMsg) isCoordinatorMsg()        {}
func (viewMsg) isCoordinatorMsg()           {}
func (countdownTick) isCoordinatorMsg()     {}
func (pollTick) isCoordinatorMsg()          {}
func (pollResult) isCoordinatorMsg()        {}
func (idleExpired) isCoordinatorMsg()       {}
