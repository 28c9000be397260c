package engine

import (
	"errors"
	"math/rand/v2"
	"slices"

	"github.com/DoyleJ11/element-battle-backend/internal/elements"
)

var ErrNoActiveRound = errors.New("no round in progress")
var ErrWrongElementCount = errors.New("wrong number of elements for this round")
var ErrUnknownElement = errors.New("unknown element")
var ErrAlreadySubmitted = errors.New("already submitted this round")
var ErrAlreadyJoined = errors.New("already in room")
var ErrNotInRoom = errors.New("player not in room")
var ErrGameFinished = errors.New("game already finished")
var ErrNothingToResolve = errors.New("no battle to resolve")
var ErrUnsupportedCommand = errors.New("unsupported command")

// MaxRounds is the number of rounds in a game.
const MaxRounds = 5

const (
	AIPlayerID   = "AI"
	AIPlayerName = "Elemental Bot"
	TieWinner    = "tie"
	UnknownName  = "Unknown"
)

type RoundType string

const (
	RoundStandard  RoundType = "standard"
	RoundMissing   RoundType = "missing"
	RoundEvolution RoundType = "evolution"
)

type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseInRound  Phase = "in_round"
	PhaseResolved Phase = "resolved"
	PhaseGameOver Phase = "game_over"
)

type Player struct {
	ID    string
	Name  string
	Score int
}

type Submission struct {
	OwnerID     string
	Name        string
	Elements    []elements.Element
	Description string
	ImageRef    string
	Power       int
}

type State struct {
	Code      string
	Phase     Phase
	Players   []Player
	Round     int
	RoundType RoundType
	Sets      [][]elements.Element
	Pending   []Submission
	Resolved  bool
}

type CommandType string

const (
	CmdJoin       CommandType = "Join"
	CmdLeave      CommandType = "Leave"
	CmdStartRound CommandType = "StartRound"
	CmdSubmit     CommandType = "Submit"
)

type Command struct {
	Type        CommandType
	PlayerID    string
	Name        string
	Elements    []elements.Element
	Description string
	ImageRef    string
}

type EventType string

const (
	EvtPlayerJoined       EventType = "PlayerJoined"
	EvtPlayerLeft         EventType = "PlayerLeft"
	EvtRoomEmpty          EventType = "RoomEmpty"
	EvtRoundStarted       EventType = "RoundStarted"
	EvtSubmissionAccepted EventType = "SubmissionAccepted"
	EvtSubstituteSpawned  EventType = "SubstituteSpawned"
	EvtBattleReady        EventType = "BattleReady"
)

type Event struct {
	Type     EventType
	PlayerID string
}

// Engine applies commands to a room state. It is not safe for concurrent use;
// each room owns its own Engine.
type Engine struct {
	rng       *rand.Rand
	fixedType RoundType
}

type Option func(*Engine)

// WithRoundType makes every round use rt instead of a random type.
func WithRoundType(rt RoundType) Option {
	return func(e *Engine) { e.fixedType = rt }
}

func New(rng *rand.Rand, opts ...Option) *Engine {
	e := &Engine{rng: rng}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

/*
	CmdJoin       -> PlayerJoined
	CmdLeave      -> PlayerLeft -> RoomEmpty | SubstituteSpawned -> BattleReady
	CmdStartRound -> RoundStarted
	CmdSubmit     -> SubmissionAccepted -> SubstituteSpawned -> BattleReady
*/

func (e *Engine) Apply(s State, cmd Command) ([]Event, State, error) {
	newState := s.Clone()

	switch cmd.Type {
	case CmdJoin:
		if hasPlayer(s, cmd.PlayerID) {
			return nil, s, ErrAlreadyJoined
		}
		newState.Players = append(newState.Players, Player{ID: cmd.PlayerID, Name: cmd.Name})
		return []Event{{Type: EvtPlayerJoined, PlayerID: cmd.PlayerID}}, newState, nil

	case CmdLeave:
		i := playerIndex(s, cmd.PlayerID)
		if i < 0 {
			return nil, s, ErrNotInRoom
		}
		newState.Players = slices.Delete(newState.Players, i, i+1)
		events := []Event{{Type: EvtPlayerLeft, PlayerID: cmd.PlayerID}}

		switch {
		case len(newState.Players) == 0:
			events = append(events, Event{Type: EvtRoomEmpty})
		case len(newState.Players) == 1 && newState.Phase == PhaseInRound && !newState.Resolved && len(newState.Pending) < 2:
			newState.Pending = append(newState.Pending, e.Substitute(newState.RoundType))
			events = append(events, Event{Type: EvtSubstituteSpawned, PlayerID: AIPlayerID})
			if len(newState.Pending) >= 2 {
				events = append(events, Event{Type: EvtBattleReady})
			}
		}
		return events, newState, nil

	case CmdStartRound:
		if s.Round >= MaxRounds {
			return nil, s, ErrGameFinished
		}
		newState.Round++
		newState.Pending = nil
		newState.Resolved = false
		newState.Phase = PhaseInRound
		newState.RoundType = e.pickRoundType()
		newState.Sets = e.drawSets(newState.RoundType)
		return []Event{{Type: EvtRoundStarted}}, newState, nil

	case CmdSubmit:
		if s.Phase != PhaseInRound && s.Phase != PhaseResolved {
			return nil, s, ErrNoActiveRound
		}
		if len(cmd.Elements) != Shapes[s.RoundType].Choose {
			return nil, s, ErrWrongElementCount
		}
		for _, el := range cmd.Elements {
			if !elements.Valid(el) {
				return nil, s, ErrUnknownElement
			}
		}
		if slices.ContainsFunc(s.Pending, func(p Submission) bool { return p.OwnerID == cmd.PlayerID }) {
			return nil, s, ErrAlreadySubmitted
		}

		name := UnknownName
		if i := playerIndex(s, cmd.PlayerID); i >= 0 {
			name = s.Players[i].Name
		}
		sub := Submission{
			OwnerID:     cmd.PlayerID,
			Name:        name,
			Elements:    e.pad(s.RoundType, cmd.Elements),
			Description: cmd.Description,
			ImageRef:    cmd.ImageRef,
		}
		newState.Pending = append(newState.Pending, sub)
		events := []Event{{Type: EvtSubmissionAccepted, PlayerID: cmd.PlayerID}}

		// Submissions after resolution stay inert until the next round.
		if newState.Resolved {
			return events, newState, nil
		}
		if len(newState.Pending) == 1 && len(newState.Players) == 1 {
			newState.Pending = append(newState.Pending, e.Substitute(s.RoundType))
			events = append(events, Event{Type: EvtSubstituteSpawned, PlayerID: AIPlayerID})
		}
		if len(newState.Pending) >= 2 {
			events = append(events, Event{Type: EvtBattleReady})
		}
		return events, newState, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}
