package lobby

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/element-battle-backend/internal/arbiter"
	"github.com/DoyleJ11/element-battle-backend/internal/elements"
	"github.com/DoyleJ11/element-battle-backend/internal/engine"
	"github.com/DoyleJ11/element-battle-backend/internal/feed"
	"github.com/DoyleJ11/element-battle-backend/internal/storage"
	"github.com/DoyleJ11/element-battle-backend/internal/types"
	pt "github.com/DoyleJ11/element-battle-backend/pkg/types"
)

var ErrClosed = errors.New("lobby closed")

// Sink is where a connected client receives broadcasts. Send must not block.
type Sink interface {
	Send(msg types.ServerMessage) bool
}

type Msg interface{ isLobbyMsg() }

type Join struct {
	ClientID string
	Name     string
	Sink     Sink
	Announce bool // broadcast roomJoined to the room
	Reply    chan error
}

func (Join) isLobbyMsg() {}

type Leave struct {
	ClientID string
	Reply    chan LeaveResult
}

func (Leave) isLobbyMsg() {}

type LeaveResult struct {
	Left  bool // the client was a player here
	Empty bool // the lobby closed because nobody is left
}

type NextRound struct {
	Reply chan RoundResult
}

func (NextRound) isLobbyMsg() {}

type RoundResult struct {
	Round    int
	GameOver bool
}

type Choice struct {
	ClientID    string
	Elements    []elements.Element
	Description string
	ImageRef    string
	Reply       chan error
}

func (Choice) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type View struct {
	NumClients int
	State      engine.State
}

type Deps struct {
	Judge         arbiter.Judge
	JudgeTimeout  time.Duration
	Feed          feed.Publisher
	Archive       storage.Recorder
	Log           *zap.Logger
	EngineOptions []engine.Option
}

func (d Deps) withDefaults() Deps {
	if d.Judge == nil {
		d.Judge = arbiter.Disabled{}
	}
	if d.JudgeTimeout <= 0 {
		d.JudgeTimeout = 3 * time.Second
	}
	if d.Feed == nil {
		d.Feed = feed.Nop{}
	}
	if d.Archive == nil {
		d.Archive = storage.Nop{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return d
}

// Lobby is one room. Every mutation, including the arbitration round trip,
// runs on the lobby's own goroutine.
type Lobby struct {
	code    string
	inbox   chan Msg
	state   engine.State
	engine  *engine.Engine
	clients map[string]Sink
	deps    Deps
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewLobby(parent context.Context, code string, deps Deps) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	deps = deps.withDefaults()

	l := &Lobby{
		code:    code,
		inbox:   make(chan Msg, 64), // Small buffer
		state:   engine.NewState(code),
		engine:  engine.New(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), deps.EngineOptions...),
		clients: make(map[string]Sink),
		deps:    deps,
		log:     deps.Log.With(zap.String("room", code)),
		ctx:     ctx,
		cancel:  cancel,
	}

	go l.loop()
	return l
}

func (l *Lobby) Code() string { return l.code }

// Expose the inbox so tests can drive the lobby directly.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done is closed once the lobby stops accepting messages.
func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- l.handleJoin(msg)

			case Leave:
				res := l.handleLeave(msg.ClientID)
				msg.Reply <- res
				if res.Empty {
					l.shutdown()
					return
				}

			case NextRound:
				res := l.handleNextRound()
				msg.Reply <- res
				if res.GameOver {
					l.finish()
					l.shutdown()
					return
				}

			case Choice:
				msg.Reply <- l.handleChoice(msg)

			case GetState:
				msg.Reply <- View{NumClients: len(l.clients), State: l.state.Clone()}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) handleJoin(msg Join) error {
	_, newState, err := l.engine.Apply(l.state, engine.Command{
		Type:     engine.CmdJoin,
		PlayerID: msg.ClientID,
		Name:     msg.Name,
	})
	if err != nil {
		return err
	}
	l.state = newState
	l.clients[msg.ClientID] = msg.Sink
	l.log.Info("player joined", zap.String("client", msg.ClientID), zap.Int("players", len(l.state.Players)))

	if msg.Announce {
		l.broadcast(pt.EventRoomJoined, roomJoined(l.state))
	}
	return nil
}

func (l *Lobby) handleLeave(clientID string) LeaveResult {
	events, newState, err := l.engine.Apply(l.state, engine.Command{Type: engine.CmdLeave, PlayerID: clientID})
	if err != nil {
		// Not a player here; nothing to reconcile.
		return LeaveResult{}
	}
	l.state = newState
	delete(l.clients, clientID)
	l.log.Info("player left", zap.String("client", clientID), zap.Int("players", len(l.state.Players)))

	l.broadcast(pt.EventPlayerLeft, playerLeft(clientID))

	if engine.ContainsEvent(events, engine.EvtRoomEmpty) {
		return LeaveResult{Left: true, Empty: true}
	}
	if engine.ContainsEvent(events, engine.EvtSubstituteSpawned) {
		l.log.Debug("substitute injected after disconnect")
	}
	if engine.ContainsEvent(events, engine.EvtBattleReady) {
		l.resolve()
	}
	return LeaveResult{Left: true}
}

func (l *Lobby) handleNextRound() RoundResult {
	if l.state.Finished() {
		l.state.Phase = engine.PhaseGameOver
		l.broadcast(pt.EventGameOver, gameOver(l.state))
		l.log.Info("game over", zap.Int("round", l.state.Round))
		return RoundResult{Round: l.state.Round, GameOver: true}
	}

	_, newState, err := l.engine.Apply(l.state, engine.Command{Type: engine.CmdStartRound})
	if err != nil {
		l.log.Error("start round", zap.Error(err))
		return RoundResult{Round: l.state.Round}
	}
	l.state = newState
	l.log.Info("round started",
		zap.Int("round", l.state.Round),
		zap.String("type", string(l.state.RoundType)))

	l.broadcast(pt.EventRoundStart, roundStart(l.state))
	return RoundResult{Round: l.state.Round}
}

func (l *Lobby) handleChoice(msg Choice) error {
	events, newState, err := l.engine.Apply(l.state, engine.Command{
		Type:        engine.CmdSubmit,
		PlayerID:    msg.ClientID,
		Elements:    msg.Elements,
		Description: msg.Description,
		ImageRef:    msg.ImageRef,
	})
	if err != nil {
		return err
	}
	l.state = newState

	if engine.ContainsEvent(events, engine.EvtSubstituteSpawned) {
		l.log.Debug("substitute spawned for lone player", zap.Int("round", l.state.Round))
	}
	if engine.ContainsEvent(events, engine.EvtBattleReady) {
		l.resolve()
	}
	return nil
}

// resolve arbitrates the first two pending submissions and broadcasts the
// outcome. Arbitration failures fall back to random powers.
func (l *Lobby) resolve() {
	a, b := l.state.Pending[0], l.state.Pending[1]

	ctx, cancel := context.WithTimeout(l.ctx, l.deps.JudgeTimeout)
	decision, err := l.deps.Judge.Judge(ctx, a.Description, b.Description)
	cancel()
	if err != nil {
		l.log.Debug("arbitration fallback", zap.Error(err))
		decision = arbiter.NoDecision
	}

	// The lobby may have been shut down while the oracle was thinking.
	if l.ctx.Err() != nil {
		return
	}

	battle, newState, err := l.engine.Resolve(l.state, decision)
	if err != nil {
		l.log.Error("resolve battle", zap.Error(err))
		return
	}
	l.state = newState
	l.log.Info("battle resolved",
		zap.Int("round", battle.Round),
		zap.String("winner", battle.Winner),
		zap.Stringer("decision", decision))

	l.broadcast(pt.EventBattleResult, battleResult(battle))

	if err := l.deps.Feed.Publish(l.ctx, feed.Event{
		RoomCode:  l.code,
		Kind:      feed.KindBattle,
		Round:     battle.Round,
		Winner:    battle.Winner,
		Narrative: battle.Narrative,
		Scores:    scores(battle.Scores),
	}); err != nil {
		l.log.Warn("publish battle", zap.Error(err))
	}
}

// finish records the final standings once the game is over.
func (l *Lobby) finish() {
	final := scores(l.state.Scores())

	if err := l.deps.Feed.Publish(l.ctx, feed.Event{
		RoomCode: l.code,
		Kind:     feed.KindGameOver,
		Round:    l.state.Round,
		Scores:   final,
	}); err != nil {
		l.log.Warn("publish game over", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(l.ctx, 5*time.Second)
	defer cancel()
	if err := l.deps.Archive.RecordGame(ctx, storage.GameSummary{
		RoomCode:   l.code,
		Rounds:     l.state.Round,
		Scores:     final,
		FinishedAt: time.Now().UTC(),
	}); err != nil {
		l.log.Warn("archive game", zap.Error(err))
	}
}

func (l *Lobby) shutdown() {
	clear(l.clients)
	l.cancel()
}

func (l *Lobby) broadcast(msgType string, payload any) {
	msg, err := types.NewServerMessage(msgType, payload)
	if err != nil {
		l.log.Error("encode broadcast", zap.String("type", msgType), zap.Error(err))
		return
	}
	for id, sink := range l.clients {
		if !sink.Send(msg) {
			// Client is slow or gone; its own connection handles cleanup.
			l.log.Warn("dropped broadcast", zap.String("client", id), zap.String("type", msgType))
		}
	}
}
