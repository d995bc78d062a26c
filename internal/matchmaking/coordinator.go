package matchmaking

import (
	"context"
	"time"

	"github.com/DoyleJ11/queue-veto-backend/internal/clock"
	"github.com/DoyleJ11/queue-veto-backend/internal/events"
	"go.uber.org/zap"
)

const (
	DefaultReadyCheckTimeout = 30 * time.Second
	DefaultPollInterval      = 1500 * time.Millisecond
	DefaultCountdownTick     = time.Second
	DefaultPortTimeout       = 10 * time.Second
	DefaultMatchDuration     = 30 * time.Minute
)

type Mode struct {
	TeamSize          int
	EstimatedDuration time.Duration
}

type Config struct {
	ReadyCheckTimeout time.Duration
	PollInterval      time.Duration
	CountdownTick     time.Duration
	// PortTimeout bounds calls the coordinator makes on its own behalf
	// (polls, auto-decline); caller-initiated calls use the caller's context.
	PortTimeout time.Duration
	// IdleTTL stops a coordinator left idle or finished for that long.
	// Zero keeps it alive until Close.
	IdleTTL time.Duration
	Modes   map[string]Mode
}

func (c Config) withDefaults() Config {
	if c.ReadyCheckTimeout <= 0 {
		c.ReadyCheckTimeout = DefaultReadyCheckTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.CountdownTick <= 0 {
		c.CountdownTick = DefaultCountdownTick
	}
	if c.PortTimeout <= 0 {
		c.PortTimeout = DefaultPortTimeout
	}
	return c
}

type Options struct {
	Queue     QueueClient
	Lobby     LobbyClient
	Clock     clock.Clock
	Publisher events.Publisher
	Stats     StatsReader
	Logger    *zap.Logger
	Config    Config
}

// Coordinator drives one player's queue lifecycle. All state is owned by a
// single goroutine; public methods and timers talk to it through the inbox.
type Coordinator struct {
	inbox  chan msg
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	queue QueueClient
	lobby LobbyClient
	clock clock.Clock
	pub   events.Publisher
	stats StatsReader
	log   *zap.Logger
	cfg   Config

	cur      *lifecycle
	attempts uint64

	idleTimer clock.Timer
	idleGen   uint64
}

// lifecycle is the state of the current queue attempt. nil means idle.
type lifecycle struct {
	tok      token
	session  QueueSession
	playerID string
	prefs    QueuePreferences
	ready    *ReadyCheck

	countdown  clock.Timer
	pollTimer  clock.Timer
	pollCancel context.CancelFunc
	polling    bool
	inFlight   bool
	announced  bool
}

// token ties timers and poll results to the attempt that started them.
type token struct {
	sessionID string
	attempt   uint64
}

// View is a copy of the coordinator state for callers.
type View struct {
	Status               Status            `json:"status"`
	PlayerID             string            `json:"player_id,omitempty"`
	Session              *QueueSession     `json:"session,omitempty"`
	Preferences          *QueuePreferences `json:"preferences,omitempty"`
	ReadyCheck           *ReadyCheck       `json:"ready_check,omitempty"`
	Elapsed              time.Duration     `json:"elapsed"`
	EstimatedWaitSeconds *int              `json:"estimated_wait_seconds,omitempty"`
	Polling              bool              `json:"polling"`
}

func NewCoordinator(parent context.Context, opts Options) *Coordinator {
	ctx, cancel := context.WithCancel(parent)

	c := &Coordinator{
		inbox:  make(chan msg, 64),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
		queue:  opts.Queue,
		lobby:  opts.Lobby,
		clock:  opts.Clock,
		pub:    opts.Publisher,
		stats:  opts.Stats,
		log:    opts.Logger,
		cfg:    opts.Config.withDefaults(),
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.pub == nil {
		c.pub = events.Discard
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}

	c.touch()
	go c.loop()
	return c
}

func (c *Coordinator) JoinQueue(ctx context.Context, playerID string, prefs QueuePreferences) (QueueSession, error) {
	reply := make(chan joinReply, 1)
	r, err := request(c, ctx, joinMsg{ctx: ctx, playerID: playerID, prefs: prefs, reply: reply}, reply)
	if err != nil {
		return QueueSession{}, err
	}
	return r.session, r.err
}

// LeaveQueue leaves the queue. It succeeds without calling the queue service
// when there is nothing to leave.
func (c *Coordinator) LeaveQueue(ctx context.Context) (bool, error) {
	reply := make(chan leaveReply, 1)
	r, err := request(c, ctx, leaveMsg{ctx: ctx, reply: reply}, reply)
	if err != nil {
		return false, err
	}
	return r.ok, r.err
}

// OnExternalMatch records that the queue service matched the session into
// lobbyID and starts the ready check.
func (c *Coordinator) OnExternalMatch(ctx context.Context, lobbyID string) error {
	reply := make(chan error, 1)
	return requestErr(c, ctx, externalMatchMsg{lobbyID: lobbyID, reply: reply}, reply)
}

// OnExternalCancel records a cancellation pushed by the queue service.
func (c *Coordinator) OnExternalCancel(ctx context.Context, reason string) error {
	reply := make(chan error, 1)
	return requestErr(c, ctx, externalCancelMsg{reason: reason, reply: reply}, reply)
}

func (c *Coordinator) AcceptMatch(ctx context.Context, playerID string) error {
	reply := make(chan error, 1)
	return requestErr(c, ctx, acceptMsg{ctx: ctx, playerID: playerID, reply: reply}, reply)
}

// DeclineMatch abandons the ready check locally. The lobby service is not
// told; that is up to the host.
func (c *Coordinator) DeclineMatch(ctx context.Context) error {
	reply := make(chan error, 1)
	return requestErr(c, ctx, declineMsg{reply: reply}, reply)
}

// PollNow runs one lobby poll immediately. It is a no-op unless the session is
// ready, and it resumes a poll loop paused by an error.
func (c *Coordinator) PollNow(ctx context.Context) error {
	reply := make(chan error, 1)
	return requestErr(c, ctx, pollNowMsg{ctx: ctx, reply: reply}, reply)
}

func (c *Coordinator) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	return request(c, ctx, viewMsg{ctx: ctx, reply: reply}, reply)
}

// Close stops the coordinator and every timer and poll it owns.
func (c *Coordinator) Close() {
	c.cancel()
	<-c.done
}

// Done is closed once the coordinator has stopped, either through Close or
// after sitting idle for IdleTTL.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

func request[T any](c *Coordinator, ctx context.Context, m msg, reply chan T) (T, error) {
	var zero T
	select {
	case c.inbox <- m:
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-c.ctx.Done():
		return zero, ErrClosed
	}
	select {
	case r := <-reply:
		return r, nil
	case <-c.ctx.Done():
		return zero, ErrClosed
	}
}

func requestErr(c *Coordinator, ctx context.Context, m msg, reply chan error) error {
	err, reqErr := request(c, ctx, m, reply)
	if reqErr != nil {
		return reqErr
	}
	return err
}

// post delivers an internal message unless the coordinator is shutting down.
func (c *Coordinator) post(m msg) {
	select {
	case c.inbox <- m:
	case <-c.ctx.Done():
	}
}

func (c *Coordinator) loop() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			if c.cur != nil {
				c.teardown(c.cur)
			}
			stopTimer(&c.idleTimer)
			return

		case m := <-c.inbox:
			switch msg := m.(type) {
			case joinMsg:
				session, err := c.handleJoin(msg)
				msg.reply <- joinReply{session: session, err: err}
			case leaveMsg:
				ok, err := c.handleLeave(msg.ctx)
				msg.reply <- leaveReply{ok: ok, err: err}
			case externalMatchMsg:
				msg.reply <- c.handleExternalMatch(msg.lobbyID)
			case externalCancelMsg:
				msg.reply <- c.handleExternalCancel(msg.reason)
			case acceptMsg:
				msg.reply <- c.handleAccept(msg.ctx, msg.playerID)
			case declineMsg:
				msg.reply <- c.handleDecline()
			case pollNowMsg:
				c.handlePollNow(msg)
			case viewMsg:
				msg.reply <- c.view(msg.ctx)
			case countdownTick:
				c.handleCountdownTick(msg.tok)
			case pollTick:
				c.handlePollTick(msg.tok)
			case pollResult:
				c.handlePollResult(msg)
			case idleExpired:
				if msg.gen == c.idleGen && c.idle() {
					c.log.Info("coordinator idle, stopping")
					c.cancel()
					return
				}
			}
			c.touch()
		}
	}
}

// idle reports whether nothing is in progress for the player.
func (c *Coordinator) idle() bool {
	return c.cur == nil || c.cur.session.Status.Terminal()
}

// touch restarts the idle timer while idle and stops it otherwise.
func (c *Coordinator) touch() {
	stopTimer(&c.idleTimer)
	c.idleGen++
	if c.cfg.IdleTTL <= 0 || !c.idle() {
		return
	}
	gen := c.idleGen
	c.idleTimer = c.clock.AfterFunc(c.cfg.IdleTTL, func() { c.post(idleExpired{gen: gen}) })
}

// current returns the live lifecycle if tok still identifies it.
func (c *Coordinator) current(tok token) (*lifecycle, bool) {
	if c.cur == nil || c.cur.tok != tok {
		return nil, false
	}
	return c.cur, true
}

func (c *Coordinator) status() Status {
	if c.cur == nil {
		return StatusIdle
	}
	return c.cur.session.Status
}

func (c *Coordinator) emit(l *lifecycle, typ events.Type, payload any) {
	c.pub.Publish(events.Event{Type: typ, Key: l.playerID, Payload: payload, At: c.clock.Now()})
}

func (c *Coordinator) view(ctx context.Context) View {
	v := View{Status: c.status()}
	l := c.cur
	if l == nil {
		return v
	}
	session := l.session
	prefs := l.prefs.clone()
	v.PlayerID = l.playerID
	v.Session = &session
	v.Preferences = &prefs
	v.Elapsed = c.clock.Now().Sub(l.session.JoinedAt)
	v.Polling = l.polling
	if l.ready != nil {
		rc := *l.ready
		v.ReadyCheck = &rc
	}

	v.EstimatedWaitSeconds = l.session.EstimatedWaitSeconds
	if v.EstimatedWaitSeconds == nil && c.stats != nil {
		if stats, ok := c.stats.Cached(ctx, l.prefs.GameID); ok {
			avg := stats.AverageWaitSeconds
			v.EstimatedWaitSeconds = &avg
		}
	}
	return v
}
