package engine

import (
	"slices"

	"github.com/DoyleJ11/element-battle-backend/internal/elements"
)

// Shape describes what a round presents and what a submission carries.
type Shape struct {
	Sets    int // element sets shown to players, 3 elements each
	Choose  int // elements a player submits
	Padding int // server-chosen elements appended to every submission
}

const SetSize = 3

var Shapes = map[RoundType]Shape{
	RoundStandard:  {Sets: 2, Choose: 2},
	RoundMissing:   {Sets: 1, Choose: 3, Padding: 1},
	RoundEvolution: {Sets: 3, Choose: 3},
}

func ParseRoundType(s string) (RoundType, bool) {
	rt := RoundType(s)
	_, ok := Shapes[rt]
	return rt, ok
}

func (e *Engine) pickRoundType() RoundType {
	if e.fixedType != "" {
		return e.fixedType
	}
	r := e.rng.Float64()
	switch {
	case r < 1.0/3:
		return RoundMissing
	case r < 2.0/3:
		return RoundEvolution
	default:
		return RoundStandard
	}
}

func (e *Engine) drawSets(rt RoundType) [][]elements.Element {
	sets := make([][]elements.Element, Shapes[rt].Sets)
	for i := range sets {
		sets[i] = elements.DrawDistinct(e.rng, SetSize)
	}
	return sets
}

func (e *Engine) pad(rt RoundType, chosen []elements.Element) []elements.Element {
	out := slices.Clone(chosen)
	for range Shapes[rt].Padding {
		out = append(out, elements.DrawExcluding(e.rng, out))
	}
	return out
}
