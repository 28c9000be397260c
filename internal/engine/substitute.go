package engine

import (
	"fmt"
	"strings"

	"github.com/DoyleJ11/element-battle-backend/internal/elements"
)

// Substitute builds the AI submission that pairs against a lone human.
// Its elements are drawn one at a time, so repeats are possible.
func (e *Engine) Substitute(rt RoundType) Submission {
	shape, ok := Shapes[rt]
	if !ok {
		shape = Shapes[RoundStandard]
	}
	chosen := make([]elements.Element, 0, shape.Choose)
	for range shape.Choose {
		chosen = append(chosen, elements.DrawDistinct(e.rng, 1)...)
	}
	return Submission{
		OwnerID:     AIPlayerID,
		Name:        AIPlayerName,
		Elements:    e.pad(rt, chosen),
		Description: fmt.Sprintf("A roaring surge of %s crashes across the arena.", strings.Join(elements.Names(chosen), " and ")),
		Power:       e.rng.IntN(101),
	}
}
