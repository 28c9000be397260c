package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/element-battle-backend/internal/arbiter"
	"github.com/DoyleJ11/element-battle-backend/internal/elements"
	"github.com/DoyleJ11/element-battle-backend/internal/engine"
	"github.com/DoyleJ11/element-battle-backend/internal/hub"
	"github.com/DoyleJ11/element-battle-backend/internal/lobby"
	"github.com/DoyleJ11/element-battle-backend/internal/types"
	pt "github.com/DoyleJ11/element-battle-backend/pkg/types"
)

func newTestServer(t *testing.T) (*hub.Hub, *httptest.Server) {
	t.Helper()
	return newTestServerWith(t, lobby.Deps{})
}

func newTestServerWith(t *testing.T, deps lobby.Deps) (*hub.Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	deps.Log = zap.NewNop()
	deps.EngineOptions = []engine.Option{engine.WithRoundType(engine.RoundStandard)}
	h := hub.NewHub(ctx, deps)
	srv := httptest.NewServer(Handler(h, Options{}, zap.NewNop()))
	t.Cleanup(func() {
		srv.Close()
		h.Shutdown()
		cancel()
	})
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, types.ClientMessage{Type: msgType, Payload: b}))
}

func expect[T any](t *testing.T, conn *websocket.Conn, wantType string) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var msg types.ServerMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	require.Equal(t, wantType, msg.Type, "payload: %s", msg.Payload)

	var out T
	require.NoError(t, json.Unmarshal(msg.Payload, &out))
	return out
}

func pickTwo(rs pt.RoundStart) []string {
	return []string{rs.Sets[0][0], rs.Sets[1][0]}
}

func TestGateway_SinglePlayerFullGame(t *testing.T) {
	h, srv := newTestServer(t)
	conn := dial(t, srv)

	send(t, conn, pt.EventCreateRoom, pt.CreateRoom{DisplayName: "Ada"})
	created := expect[pt.RoomCreated](t, conn, pt.EventRoomCreated)
	require.Len(t, created.RoomCode, hub.CodeLength)
	code := created.RoomCode

	send(t, conn, pt.EventStartGame, pt.StartGame{RoomCode: code})
	for round := 1; round <= engine.MaxRounds; round++ {
		rs := expect[pt.RoundStart](t, conn, pt.EventRoundStart)
		assert.Equal(t, round, rs.Round)
		assert.Equal(t, "standard", rs.Type)

		send(t, conn, pt.EventPlayerChoice, pt.PlayerChoice{
			RoomCode:    code,
			Elements:    pickTwo(rs),
			Description: "a blazing tide",
		})
		br := expect[pt.BattleResult](t, conn, pt.EventBattleResult)
		assert.Equal(t, round, br.Round)
		assert.Equal(t, engine.AIPlayerID, br.Abilities[1].OwnerID)

		send(t, conn, pt.EventRequestNextRound, pt.RequestNextRound{RoomCode: code})
	}

	over := expect[pt.GameOver](t, conn, pt.EventGameOver)
	require.Len(t, over.Scores, 1)
	assert.Equal(t, "Ada", over.Scores[0].Name)

	require.Eventually(t, func() bool {
		_, err := h.Get(context.Background(), code)
		return errors.Is(err, hub.ErrRoomNotFound)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGateway_JoinUnknownRoom(t *testing.T) {
	_, srv := newTestServer(t)
	conn := dial(t, srv)

	send(t, conn, pt.EventJoinRoom, pt.JoinRoom{DisplayName: "Bo", RoomCode: "NOPE42"})
	e := expect[pt.ErrorMessage](t, conn, pt.EventErrorMessage)
	assert.Equal(t, msgRoomNotFound, e.Message)
}

func TestGateway_SilentOnUnknownRoomForGameEvents(t *testing.T) {
	_, srv := newTestServer(t)
	conn := dial(t, srv)

	send(t, conn, pt.EventStartGame, pt.StartGame{RoomCode: "NOPE42"})
	send(t, conn, pt.EventPlayerChoice, pt.PlayerChoice{RoomCode: "NOPE42", Elements: []string{"Fire", "Ice"}})
	send(t, conn, pt.EventRequestNextRound, pt.RequestNextRound{RoomCode: "NOPE42"})

	// the next frame is the reply to this probe, so nothing came before it
	send(t, conn, "dance", struct{}{})
	e := expect[pt.ErrorMessage](t, conn, pt.EventErrorMessage)
	assert.Contains(t, e.Message, "unknown message type")
}

func TestGateway_ValidationAndRuleErrors(t *testing.T) {
	_, srv := newTestServer(t)
	conn := dial(t, srv)

	send(t, conn, pt.EventCreateRoom, pt.CreateRoom{DisplayName: "  "})
	e := expect[pt.ErrorMessage](t, conn, pt.EventErrorMessage)
	assert.Contains(t, e.Message, "displayName")

	send(t, conn, pt.EventCreateRoom, pt.CreateRoom{DisplayName: "Ada"})
	code := expect[pt.RoomCreated](t, conn, pt.EventRoomCreated).RoomCode

	send(t, conn, pt.EventPlayerChoice, pt.PlayerChoice{RoomCode: code, Elements: []string{"Fire", "Ice"}})
	e = expect[pt.ErrorMessage](t, conn, pt.EventErrorMessage)
	assert.Equal(t, engine.ErrNoActiveRound.Error(), e.Message)

	send(t, conn, pt.EventStartGame, pt.StartGame{RoomCode: code})
	expect[pt.RoundStart](t, conn, pt.EventRoundStart)

	send(t, conn, pt.EventPlayerChoice, pt.PlayerChoice{RoomCode: code, Elements: []string{"Fire"}})
	e = expect[pt.ErrorMessage](t, conn, pt.EventErrorMessage)
	assert.Equal(t, engine.ErrWrongElementCount.Error(), e.Message)
}

func TestGateway_TwoPlayersAndDisconnect(t *testing.T) {
	h, srv := newTestServer(t)
	ada := dial(t, srv)
	bo := dial(t, srv)

	send(t, ada, pt.EventCreateRoom, pt.CreateRoom{DisplayName: "Ada"})
	code := expect[pt.RoomCreated](t, ada, pt.EventRoomCreated).RoomCode

	send(t, bo, pt.EventJoinRoom, pt.JoinRoom{DisplayName: "Bo", RoomCode: strings.ToLower(code)})
	joined := expect[pt.RoomJoined](t, ada, pt.EventRoomJoined)
	require.Len(t, joined.Players, 2)
	assert.Equal(t, "Bo", joined.Players[1].Name)
	expect[pt.RoomJoined](t, bo, pt.EventRoomJoined)

	send(t, ada, pt.EventStartGame, pt.StartGame{RoomCode: code})
	rs := expect[pt.RoundStart](t, ada, pt.EventRoundStart)
	expect[pt.RoundStart](t, bo, pt.EventRoundStart)

	send(t, ada, pt.EventPlayerChoice, pt.PlayerChoice{RoomCode: code, Elements: pickTwo(rs), Description: "inferno"})

	bo.Close(websocket.StatusNormalClosure, "bye")
	left := expect[pt.PlayerLeft](t, ada, pt.EventPlayerLeft)
	assert.NotEmpty(t, left.ID)

	// Ada versus the injected substitute, in whichever order they landed.
	br := expect[pt.BattleResult](t, ada, pt.EventBattleResult)
	owners := []string{br.Abilities[0].OwnerID, br.Abilities[1].OwnerID}
	assert.Contains(t, owners, engine.AIPlayerID)
	assert.NotContains(t, owners, left.ID)

	ada.Close(websocket.StatusNormalClosure, "bye")
	require.Eventually(t, func() bool {
		_, err := h.Get(context.Background(), code)
		return errors.Is(err, hub.ErrRoomNotFound)
	}, 2*time.Second, 10*time.Millisecond)
}

// stallingJudge holds every arbitration until its deadline.
type stallingJudge struct {
	started chan struct{}
}

func (j *stallingJudge) Judge(ctx context.Context, _, _ string) (arbiter.Decision, error) {
	j.started <- struct{}{}
	<-ctx.Done()
	return arbiter.NoDecision, ctx.Err()
}

type nopSink struct{}

func (nopSink) Send(types.ServerMessage) bool { return true }

func TestGateway_DisconnectNotBlockedByBusyRooms(t *testing.T) {
	const busy = 3
	judge := &stallingJudge{started: make(chan struct{}, busy)}
	h, srv := newTestServerWith(t, lobby.Deps{Judge: judge, JudgeTimeout: time.Minute})
	ctx := context.Background()

	for i := range busy {
		lb, err := h.Create(ctx)
		require.NoError(t, err)
		id := fmt.Sprintf("busy-%d", i)
		require.NoError(t, lb.Join(ctx, id, "Busy", nopSink{}, false))
		_, err = lb.Advance(ctx)
		require.NoError(t, err)
		view, err := lb.View(ctx)
		require.NoError(t, err)
		pick := []elements.Element{view.State.Sets[0][0], view.State.Sets[1][0]}
		go func() {
			_ = lb.Choose(ctx, id, pick, "stall", "")
		}()
	}
	for range busy {
		select {
		case <-judge.started:
		case <-time.After(2 * time.Second):
			t.Fatalf("busy rooms never started arbitrating")
		}
	}

	conn := dial(t, srv)
	send(t, conn, pt.EventCreateRoom, pt.CreateRoom{DisplayName: "Ada"})
	code := expect[pt.RoomCreated](t, conn, pt.EventRoomCreated).RoomCode

	conn.Close(websocket.StatusNormalClosure, "bye")
	require.Eventually(t, func() bool {
		_, err := h.Get(ctx, code)
		return errors.Is(err, hub.ErrRoomNotFound)
	}, 2*time.Second, 10*time.Millisecond, "room still registered after its only player left")
}

func TestGateway_StartGameAfterLastRoundEndsGame(t *testing.T) {
	h, srv := newTestServer(t)
	conn := dial(t, srv)

	send(t, conn, pt.EventCreateRoom, pt.CreateRoom{DisplayName: "Ada"})
	code := expect[pt.RoomCreated](t, conn, pt.EventRoomCreated).RoomCode

	for round := 1; round <= engine.MaxRounds; round++ {
		send(t, conn, pt.EventStartGame, pt.StartGame{RoomCode: code})
		rs := expect[pt.RoundStart](t, conn, pt.EventRoundStart)
		assert.Equal(t, round, rs.Round)
	}

	send(t, conn, pt.EventStartGame, pt.StartGame{RoomCode: code})
	over := expect[pt.GameOver](t, conn, pt.EventGameOver)
	assert.Equal(t, []pt.Score{{Name: "Ada", Score: 0}}, over.Scores)

	require.Eventually(t, func() bool {
		_, err := h.Get(context.Background(), code)
		return errors.Is(err, hub.ErrRoomNotFound)
	}, 2*time.Second, 10*time.Millisecond)

	// the room is gone, so a further start is ignored
	send(t, conn, pt.EventStartGame, pt.StartGame{RoomCode: code})
	send(t, conn, "dance", struct{}{})
	expect[pt.ErrorMessage](t, conn, pt.EventErrorMessage)
}

func TestClient_SendNeverBlocks(t *testing.T) {
	c := &client{id: "c1", out: make(chan types.ServerMessage, 1), done: make(chan struct{})}

	assert.True(t, c.Send(types.ErrorFrame("one")))
	assert.False(t, c.Send(types.ErrorFrame("two")))

	<-c.out
	close(c.done)
	assert.False(t, c.Send(types.ErrorFrame("three")))
}

func TestPublicMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"fault", errHandlerFault, msgInternal},
		{"room", hub.ErrRoomNotFound, msgRoomNotFound},
		{"closed", lobby.ErrClosed, msgRoomNotFound},
		{"rule", errors.Join(errors.New("ctx"), engine.ErrAlreadySubmitted), engine.ErrAlreadySubmitted.Error()},
		{"validation", &types.ValidationError{Field: "roomCode", Reason: "required"}, "invalid roomCode: required"},
		{"other", context.DeadlineExceeded, msgInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, publicMessage(tt.err))
		})
	}
}
