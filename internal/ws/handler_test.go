package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DoyleJ11/queue-veto-backend/internal/auth"
	"github.com/DoyleJ11/queue-veto-backend/internal/events"
	"github.com/DoyleJ11/queue-veto-backend/internal/hub"
	"github.com/DoyleJ11/queue-veto-backend/internal/room"
	"github.com/DoyleJ11/queue-veto-backend/internal/veto"
	"github.com/DoyleJ11/queue-veto-backend/pkg/types"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func readMsg(t *testing.T, ctx context.Context, conn *websocket.Conn) types.ServerMessage {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg types.ServerMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func sendMsg(t *testing.T, ctx context.Context, conn *websocket.Conn, msg types.ClientMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func TestHandler_VetoOverWebsocket(t *testing.T) {
	log := zaptest.NewLogger(t)
	h := hub.NewHub(context.Background(), hub.Options{
		RoomOptions: func(string) room.Options { return room.Options{StepTimeout: time.Minute, Logger: log} },
		Logger:      log,
	})
	t.Cleanup(func() { _ = h.Shutdown(context.Background()) })

	s, err := veto.Start([]string{"A", "B", "C"}, veto.ParseFormat("ban-ban-pick-remaining"))
	require.NoError(t, err)
	require.NotNil(t, h.CreateRoom(context.Background(), "ABC123", s))

	srv := httptest.NewServer(Handler(h, log))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := http.Get(srv.URL + "?code=NOPE00")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "?code=ABC123&team=7")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	conn, _, err := websocket.Dial(ctx, wsURL(srv, "?code=ABC123&team=0"), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")
	other, _, err := websocket.Dial(ctx, wsURL(srv, "?code=ABC123&team=1"), nil)
	require.NoError(t, err)
	defer other.Close(websocket.StatusNormalClosure, "")

	first := readMsg(t, ctx, conn)
	assert.Equal(t, types.MsgStateSnapshot, first.Type)
	assert.Equal(t, "ABC123", first.Code)
	require.NotNil(t, first.State)
	require.NotNil(t, first.Deadline)
	assert.Positive(t, first.RemainingMs)
	assert.Equal(t, types.MsgStateSnapshot, readMsg(t, ctx, other).Type)

	// A seated client cannot act for the other side.
	sendMsg(t, ctx, conn, types.ClientMessage{Type: types.MsgVetoAction, Team: veto.Team1, MapID: "A"})
	assert.Equal(t, "seated for team 0", readMsg(t, ctx, conn).Error)

	sendMsg(t, ctx, other, types.ClientMessage{Type: types.MsgVetoAction, Team: veto.Team1, MapID: "A"})
	rejected := readMsg(t, ctx, other)
	assert.Equal(t, types.MsgError, rejected.Type)
	assert.Contains(t, rejected.Error, "not this team's turn")

	sendMsg(t, ctx, conn, types.ClientMessage{Type: types.MsgVetoAction, Team: veto.Team0, MapID: "A"})
	next := readMsg(t, ctx, conn)
	assert.Equal(t, types.MsgStateSnapshot, next.Type)
	assert.Equal(t, 1, next.Version)
	assert.Equal(t, []string{"A"}, next.State.Banned)
	assert.Equal(t, 1, readMsg(t, ctx, other).Version)

	sendMsg(t, ctx, conn, types.ClientMessage{Type: types.MsgPing})
	assert.Equal(t, types.MsgPong, readMsg(t, ctx, conn).Type)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{")))
	assert.Equal(t, "bad json", readMsg(t, ctx, conn).Error)

	watcher, _, err := websocket.Dial(ctx, wsURL(srv, "?code=ABC123"), nil)
	require.NoError(t, err)
	defer watcher.Close(websocket.StatusNormalClosure, "")
	assert.Equal(t, types.MsgStateSnapshot, readMsg(t, ctx, watcher).Type)
	sendMsg(t, ctx, watcher, types.ClientMessage{Type: types.MsgVetoAction, Team: veto.Team1, MapID: "B"})
	assert.Equal(t, "spectators cannot act", readMsg(t, ctx, watcher).Error)
}

func TestEventsHandler_StreamsPlayerEvents(t *testing.T) {
	log := zaptest.NewLogger(t)
	bus := events.NewBus(log)

	withPlayer := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithPlayerID(r.Context(), "p1")))
		})
	}
	srv := httptest.NewServer(withPlayer(EventsHandler(bus, log)))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(srv, "/"), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return bus.Len() == 1 }, time.Second, 5*time.Millisecond)
	bus.Publish(events.Event{Type: events.QueueStarted, Key: "p2"})
	bus.Publish(events.Event{Type: events.ReadyCheckStarted, Key: "p1"})

	msg := readMsg(t, ctx, conn)
	assert.Equal(t, types.MsgEvent, msg.Type)
	require.NotNil(t, msg.Event)
	assert.Equal(t, events.ReadyCheckStarted, msg.Event.Type)
	assert.Equal(t, "p1", msg.Event.Key)

	conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return bus.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestEventsHandler_RequiresPlayer(t *testing.T) {
	srv := httptest.NewServer(EventsHandler(events.NewBus(nil), nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
