package engine

import (
	"slices"

	"github.com/DoyleJ11/element-battle-backend/internal/elements"
)

func NewState(code string) State {
	return State{Code: code, Phase: PhaseLobby}
}

// Clone copies every slice so the result can be mutated independently.
func (s State) Clone() State {
	c := s
	c.Players = slices.Clone(s.Players)
	c.Pending = make([]Submission, len(s.Pending))
	for i, p := range s.Pending {
		p.Elements = slices.Clone(p.Elements)
		c.Pending[i] = p
	}
	if s.Pending == nil {
		c.Pending = nil
	}
	c.Sets = make([][]elements.Element, len(s.Sets))
	for i, set := range s.Sets {
		c.Sets[i] = slices.Clone(set)
	}
	return c
}

// Finished reports whether no further round may start.
func (s State) Finished() bool {
	return s.Round >= MaxRounds
}

type Score struct {
	Name  string
	Score int
}

// Scores lists scores in join order.
func (s State) Scores() []Score {
	out := make([]Score, len(s.Players))
	for i, p := range s.Players {
		out[i] = Score{Name: p.Name, Score: p.Score}
	}
	return out
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func hasPlayer(s State, id string) bool {
	return playerIndex(s, id) >= 0
}

func playerIndex(s State, id string) int {
	return slices.IndexFunc(s.Players, func(p Player) bool { return p.ID == id })
}
