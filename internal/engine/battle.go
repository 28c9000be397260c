package engine

import (
	"fmt"
	"strings"

	"github.com/DoyleJ11/element-battle-backend/internal/arbiter"
	"github.com/DoyleJ11/element-battle-backend/internal/elements"
)

type Battle struct {
	Round     int
	Winner    string // player id, AIPlayerID or TieWinner
	Abilities [2]Submission
	Scores    []Score
	Narrative string
}

// Resolve pairs the first two pending submissions. Anything queued behind
// them is never consumed.
func (e *Engine) Resolve(s State, d arbiter.Decision) (Battle, State, error) {
	if s.Resolved || len(s.Pending) < 2 {
		return Battle{}, s, ErrNothingToResolve
	}
	newState := s.Clone()
	a, b := newState.Pending[0], newState.Pending[1]
	a.Power, b.Power = e.assignPowers(d)
	newState.Pending[0], newState.Pending[1] = a, b

	winner := decideWinner(a, b)
	if i := playerIndex(newState, winner); i >= 0 {
		newState.Players[i].Score++
	}
	newState.Resolved = true
	newState.Phase = PhaseResolved

	return Battle{
		Round:     newState.Round,
		Winner:    winner,
		Abilities: [2]Submission{a, b},
		Scores:    newState.Scores(),
		Narrative: narrate(a, b, winner),
	}, newState, nil
}

func (e *Engine) assignPowers(d arbiter.Decision) (int, int) {
	a, b := e.rng.IntN(101), e.rng.IntN(101)
	switch d {
	case arbiter.FavorA:
		a = b + 1
	case arbiter.FavorB:
		b = a + 1
	}
	return a, b
}

func decideWinner(a, b Submission) string {
	switch {
	case a.Power > b.Power:
		return a.OwnerID
	case b.Power > a.Power:
		return b.OwnerID
	default:
		return TieWinner
	}
}

func narrate(a, b Submission, winner string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s] clashes with %s [%s]. ",
		a.Name, strings.Join(elements.Names(a.Elements), ", "),
		b.Name, strings.Join(elements.Names(b.Elements), ", "))
	switch winner {
	case TieWinner:
		fmt.Fprintf(&sb, "Neither side gives way: a tie at %d.", a.Power)
	case a.OwnerID:
		fmt.Fprintf(&sb, "%s wins %d to %d!", a.Name, a.Power, b.Power)
	default:
		fmt.Fprintf(&sb, "%s wins %d to %d!", b.Name, b.Power, a.Power)
	}
	return sb.String()
}
