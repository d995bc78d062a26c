package hub

import (
	"context"

	"github.com/DoyleJ11/queue-veto-backend/internal/matchmaking"
	"github.com/DoyleJ11/queue-veto-backend/internal/room"
	"github.com/DoyleJ11/queue-veto-backend/internal/veto"
	"go.uber.org/zap"
)

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	Code  string
	State veto.State
	Reply chan *room.Room
}

type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

// RemoveRoom stops and forgets the room under Code. With Room set, only that
// exact room is removed.
type RemoveRoom struct {
	Code string
	Room *room.Room
}

// EnsureCoordinator returns the player's coordinator, creating it on first use.
type EnsureCoordinator struct {
	PlayerID string
	Reply    chan *matchmaking.Coordinator
}

type GetCoordinator struct {
	PlayerID string
	Reply    chan *matchmaking.Coordinator
}

type RemoveCoordinator struct {
	PlayerID    string
	Coordinator *matchmaking.Coordinator
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()        {}
func (GetRoom) isHubMsg()           {}
func (RemoveRoom) isHubMsg()        {}
func (EnsureCoordinator) isHubMsg() {}
func (GetCoordinator) isHubMsg()    {}
func (RemoveCoordinator) isHubMsg() {}
func (ShutdownHub) isHubMsg()       {}

// Options builds per-room and per-player actors on demand.
type Options struct {
	RoomOptions    func(code string) room.Options
	NewCoordinator func(ctx context.Context, playerID string) *matchmaking.Coordinator
	Logger         *zap.Logger
}

type Hub struct {
	inbox        chan HubMsg
	done         chan struct{}
	rooms        map[string]*room.Room
	coordinators map[string]*matchmaking.Coordinator
	opts         Options
	log          *zap.Logger
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		inbox:        make(chan HubMsg, 64),
		done:         make(chan struct{}),
		rooms:        make(map[string]*room.Room),
		coordinators: make(map[string]*matchmaking.Coordinator),
		opts:         opts,
		log:          log,
		ctx:          ctx,
		cancel:       cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed after the hub has stopped every room and coordinator.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Room looks up a room by code. It returns nil if there is none.
func (h *Hub) Room(ctx context.Context, code string) *room.Room {
	reply := make(chan *room.Room, 1)
	return ask(ctx, h, GetRoom{Code: code, Reply: reply}, reply)
}

// CreateRoom registers a room under code, or returns the existing one.
func (h *Hub) CreateRoom(ctx context.Context, code string, state veto.State) *room.Room {
	reply := make(chan *room.Room, 1)
	return ask(ctx, h, CreateRoom{Code: code, State: state, Reply: reply}, reply)
}

func (h *Hub) Coordinator(ctx context.Context, playerID string) *matchmaking.Coordinator {
	reply := make(chan *matchmaking.Coordinator, 1)
	return ask(ctx, h, EnsureCoordinator{PlayerID: playerID, Reply: reply}, reply)
}

// Shutdown stops every actor the hub owns and waits for it to finish.
func (h *Hub) Shutdown(ctx context.Context) error {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func ask[T any](ctx context.Context, h *Hub, m HubMsg, reply chan T) T {
	var zero T
	select {
	case h.inbox <- m:
	case <-ctx.Done():
		return zero
	case <-h.ctx.Done():
		return zero
	}
	select {
	case r := <-reply:
		return r
	case <-ctx.Done():
		return zero
	case <-h.ctx.Done():
		return zero
	}
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				if rm := h.rooms[msg.Code]; rm != nil && !stopped(rm.Done()) {
					msg.Reply <- rm
					break
				}
				var opts room.Options
				if h.opts.RoomOptions != nil {
					opts = h.opts.RoomOptions(msg.Code)
				}
				opts.Code = msg.Code
				rm := room.New(h.ctx, msg.State, opts)
				h.rooms[msg.Code] = rm
				go h.forgetWhenDone(rm.Done(), RemoveRoom{Code: msg.Code, Room: rm})
				h.log.Info("room created", zap.String("room", msg.Code), zap.Int("pool", len(msg.State.Pool)))
				msg.Reply <- rm

			case GetRoom:
				msg.Reply <- h.rooms[msg.Code] // May be nil

			case RemoveRoom:
				if rm := h.rooms[msg.Code]; rm != nil && (msg.Room == nil || msg.Room == rm) {
					stopRoom(rm)
					delete(h.rooms, msg.Code)
					h.log.Info("room removed", zap.String("room", msg.Code))
				}

			case EnsureCoordinator:
				if c := h.coordinators[msg.PlayerID]; c != nil && !stopped(c.Done()) {
					msg.Reply <- c
					break
				}
				if h.opts.NewCoordinator == nil || msg.PlayerID == "" {
					msg.Reply <- nil
					break
				}
				c := h.opts.NewCoordinator(h.ctx, msg.PlayerID)
				h.coordinators[msg.PlayerID] = c
				go h.forgetWhenDone(c.Done(), RemoveCoordinator{PlayerID: msg.PlayerID, Coordinator: c})
				msg.Reply <- c

			case GetCoordinator:
				msg.Reply <- h.coordinators[msg.PlayerID]

			case RemoveCoordinator:
				if c := h.coordinators[msg.PlayerID]; c != nil && (msg.Coordinator == nil || msg.Coordinator == c) {
					c.Close()
					delete(h.coordinators, msg.PlayerID)
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for code, rm := range h.rooms {
		stopRoom(rm)
		delete(h.rooms, code)
	}
	for id, c := range h.coordinators {
		c.Close()
		delete(h.coordinators, id)
	}
	h.log.Info("hub stopped")
	h.cancel()
}

// forgetWhenDone posts m once an actor stops on its own, so rooms and
// coordinators that close themselves leave the registry.
func (h *Hub) forgetWhenDone(done <-chan struct{}, m HubMsg) {
	select {
	case <-done:
	case <-h.ctx.Done():
		return
	}
	select {
	case h.inbox <- m:
	case <-h.ctx.Done():
	}
}

func stopped(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}

func stopRoom(rm *room.Room) {
	select {
	case rm.Inbox() <- room.Shutdown{}:
	case <-rm.Done():
	}
}
