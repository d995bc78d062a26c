package room

import (
	"context"
	"strings"
	"time"

	"github.com/DoyleJ11/queue-veto-backend/internal/audit"
	"github.com/DoyleJ11/queue-veto-backend/internal/clock"
	"github.com/DoyleJ11/queue-veto-backend/internal/events"
	"github.com/DoyleJ11/queue-veto-backend/internal/veto"
	"go.uber.org/zap"
)

const (
	DefaultStepTimeout = 30 * time.Second
	auditTimeout       = 5 * time.Second
)

type Msg interface{ isRoomMsg() }

// Action is a client command. Reply is optional and receives the Apply error.
type Action struct {
	ClientID string
	Cmd      veto.Command
	Reply    chan error
}

func (Action) isRoomMsg() {}

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isRoomMsg() {}

type Leave struct{ ClientID string }

func (Leave) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

// stepTimeout is posted by the step timer. gen identifies the step it was
// armed for; fires for an earlier step are dropped.
type stepTimeout struct{ gen uint64 }

func (stepTimeout) isRoomMsg() {}

type lingerExpired struct{ gen uint64 }

func (lingerExpired) isRoomMsg() {}

type Snapshot struct {
	Version  int
	Code     string
	State    veto.State
	Deadline time.Time // zero once the veto is complete
	Events   []veto.Event
}

type View struct {
	Version    int
	NumClients int
	State      veto.State
	Deadline   time.Time
}

type Options struct {
	Code        string
	StepTimeout time.Duration
	Clock       clock.Clock
	Publisher   events.Publisher
	Audit       audit.Store
	Logger      *zap.Logger
	// Linger is how long a completed room with no clients stays open.
	// Zero keeps it until shutdown.
	Linger time.Duration
}

// Room hosts one veto session. All state is owned by the loop goroutine.
type Room struct {
	code    string
	inbox   chan Msg
	done    chan struct{}
	state   veto.State
	version int
	clients map[string]chan Snapshot
	ctx     context.Context
	cancel  context.CancelFunc

	clock       clock.Clock
	stepTimeout time.Duration
	pub         events.Publisher
	audit       audit.Store
	log         *zap.Logger

	timer    clock.Timer
	timerGen uint64
	deadline time.Time

	linger      time.Duration
	lingerTimer clock.Timer
	lingerGen   uint64
}

func New(parent context.Context, initial veto.State, opts Options) *Room {
	ctx, cancel := context.WithCancel(parent)

	r := &Room{
		code:        opts.Code,
		inbox:       make(chan Msg, 64),
		done:        make(chan struct{}),
		state:       initial,
		clients:     make(map[string]chan Snapshot),
		ctx:         ctx,
		cancel:      cancel,
		clock:       opts.Clock,
		stepTimeout: opts.StepTimeout,
		pub:         opts.Publisher,
		audit:       opts.Audit,
		log:         opts.Logger,
		linger:      opts.Linger,
	}
	if r.clock == nil {
		r.clock = clock.Real()
	}
	if r.stepTimeout <= 0 {
		r.stepTimeout = DefaultStepTimeout
	}
	if r.pub == nil {
		r.pub = events.Discard
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	r.log = r.log.With(zap.String("room", r.code))

	r.armTimer()
	r.checkLinger()
	go r.loop()
	return r
}

// Inbox exposes the inbox so the ws layer and tests can send messages.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) Code() string { return r.code }

// Done is closed once the room has shut down.
func (r *Room) Done() <-chan struct{} { return r.done }

// Send delivers m unless the room has shut down.
func (r *Room) Send(ctx context.Context, m Msg) bool {
	if r.ctx.Err() != nil {
		return false
	}
	select {
	case r.inbox <- m:
		return true
	case <-r.ctx.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

func (r *Room) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client + send current snapshot immediately
				r.clients[msg.ClientID] = msg.Outbox
				select {
				case msg.Outbox <- r.snapshot(nil):
				default:
					close(msg.Outbox)
					delete(r.clients, msg.ClientID)
				}

			case Leave:
				delete(r.clients, msg.ClientID)

			case Action:
				err := r.apply(msg.Cmd)
				if err != nil {
					r.log.Debug("action rejected",
						zap.String("client_id", msg.ClientID),
						zap.Int("team", msg.Cmd.Team),
						zap.String("map_id", msg.Cmd.MapID),
						zap.Error(err),
					)
				}
				if msg.Reply != nil {
					msg.Reply <- err
				}

			case stepTimeout:
				r.handleStepTimeout(msg.gen)

			case GetState:
				msg.Reply <- View{
					Version:    r.version,
					NumClients: len(r.clients),
					State:      r.state,
					Deadline:   r.deadline,
				}

			case lingerExpired:
				if msg.gen == r.lingerGen && r.finished() {
					r.log.Info("closing finished room")
					r.shutdown()
					return
				}

			case Shutdown:
				r.shutdown()
				return
			}
			r.checkLinger()
		}
	}
}

// finished reports whether the veto is over and nobody is watching.
func (r *Room) finished() bool {
	return r.state.Complete && len(r.clients) == 0
}

// checkLinger starts the close countdown once the room is finished and
// cancels it when a client returns.
func (r *Room) checkLinger() {
	if r.linger <= 0 {
		return
	}
	if !r.finished() {
		if r.lingerTimer != nil {
			r.lingerTimer.Stop()
			r.lingerTimer = nil
			r.lingerGen++
		}
		return
	}
	if r.lingerTimer != nil {
		return
	}
	r.lingerGen++
	gen := r.lingerGen
	r.lingerTimer = r.clock.AfterFunc(r.linger, func() {
		select {
		case r.inbox <- lingerExpired{gen: gen}:
		case <-r.ctx.Done():
		}
	})
}

func (r *Room) apply(cmd veto.Command) error {
	evts, next, err := veto.Apply(r.state, cmd)
	if err != nil {
		return err
	}
	r.commit(evts, next)
	return nil
}

func (r *Room) handleStepTimeout(gen uint64) {
	if gen != r.timerGen {
		return
	}
	r.timer = nil
	cmd, ok := veto.TimeoutCommand(r.state)
	if !ok {
		return
	}
	kind, _ := r.state.CurrentKind()
	r.log.Info("step deadline lapsed, auto-resolving",
		zap.Int("step", r.state.Step),
		zap.String("kind", string(kind)),
		zap.Int("team", cmd.Team),
		zap.String("map_id", cmd.MapID),
		zap.String("source", string(veto.SourceTimeout)),
	)
	if err := r.apply(cmd); err != nil {
		r.log.Error("auto-resolution rejected", zap.Error(err))
	}
}

func (r *Room) commit(evts []veto.Event, next veto.State) {
	r.state = next
	r.version++
	r.armTimer()
	r.broadcast(r.snapshot(evts))
	r.publish(evts)
	r.record(evts)
}

// armTimer replaces any pending step timer with one for the current step.
func (r *Room) armTimer() {
	r.timerGen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.state.Complete {
		r.deadline = time.Time{}
		return
	}
	gen := r.timerGen
	r.deadline = r.clock.Now().Add(r.stepTimeout)
	r.timer = r.clock.AfterFunc(r.stepTimeout, func() {
		select {
		case r.inbox <- stepTimeout{gen: gen}:
		case <-r.ctx.Done():
		}
	})
}

func (r *Room) snapshot(evts []veto.Event) Snapshot {
	return Snapshot{
		Version:  r.version,
		Code:     r.code,
		State:    r.state,
		Deadline: r.deadline,
		Events:   evts,
	}
}

func (r *Room) publish(evts []veto.Event) {
	now := r.clock.Now()
	for _, e := range evts {
		switch e.Type {
		case veto.EvtMapBanned, veto.EvtMapPicked, veto.EvtMapsFinalized:
			r.pub.Publish(events.Event{Type: events.VetoActionApplied, Key: r.code, Payload: e, At: now})
		case veto.EvtVetoCompleted:
			r.log.Info("veto completed",
				zap.Strings("picked", r.state.Picked),
				zap.Strings("banned", r.state.Banned),
			)
			r.pub.Publish(events.Event{Type: events.VetoCompleted, Key: r.code, Payload: r.state, At: now})
		}
	}
}

// record writes resolved steps to the audit store off the loop goroutine.
func (r *Room) record(evts []veto.Event) {
	if r.audit == nil {
		return
	}
	now := r.clock.Now()
	var recs []audit.Record
	source := veto.SourceManual
	for _, e := range evts {
		if e.Source != "" {
			source = e.Source
		}
		var kind veto.StepKind
		switch e.Type {
		case veto.EvtMapBanned:
			kind = veto.StepBan
		case veto.EvtMapPicked:
			kind = veto.StepPick
		case veto.EvtMapsFinalized:
			kind = veto.StepRemaining
		default:
			continue
		}
		recs = append(recs, audit.Record{
			RoomCode:  r.code,
			Step:      e.Step,
			Team:      e.Team,
			Kind:      string(kind),
			MapIDs:    strings.Join(e.MapIDs, ","),
			Source:    string(source),
			CreatedAt: now,
		})
	}
	if len(recs) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if err := r.audit.Append(ctx, recs...); err != nil {
			r.log.Error("failed to record veto actions", zap.Error(err))
		}
	}()
}

func (r *Room) shutdown() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.lingerTimer != nil {
		r.lingerTimer.Stop()
		r.lingerTimer = nil
	}
	r.timerGen++
	for id, ch := range r.clients {
		close(ch) // Tell client no more snapshots
		delete(r.clients, id)
	}
	r.cancel()
}

func (r *Room) broadcast(snap Snapshot) {
	for id, ch := range r.clients {
		select {
		case ch <- snap:
		default:
			// Client is slow/full - drop them.
			r.log.Warn("dropping slow client", zap.String("client_id", id))
			close(ch)
			delete(r.clients, id)
		}
	}
}
