package elements

import (
	"math/rand/v2"
	"slices"
)

type Element string

const (
	Fire      Element = "Fire"
	Water     Element = "Water"
	Earth     Element = "Earth"
	Air       Element = "Air"
	Lightning Element = "Lightning"
	Ice       Element = "Ice"
	Nature    Element = "Nature"
	Shadow    Element = "Shadow"
	Light     Element = "Light"
	Metal     Element = "Metal"
)

// Catalog is the fixed set every round draws from.
var Catalog = []Element{Fire, Water, Earth, Air, Lightning, Ice, Nature, Shadow, Light, Metal}

func Valid(e Element) bool {
	return slices.Contains(Catalog, e)
}

// DrawDistinct returns min(n, len(Catalog)) distinct elements chosen uniformly
// without replacement.
func DrawDistinct(r *rand.Rand, n int) []Element {
	return drawFrom(r, Catalog, n)
}

// DrawExcluding draws one element that is not in taken. When every element is
// taken it falls back to a plain draw from the catalog.
func DrawExcluding(r *rand.Rand, taken []Element) Element {
	free := make([]Element, 0, len(Catalog))
	for _, e := range Catalog {
		if !slices.Contains(taken, e) {
			free = append(free, e)
		}
	}
	if len(free) == 0 {
		free = Catalog
	}
	return drawFrom(r, free, 1)[0]
}

func drawFrom(r *rand.Rand, pool []Element, n int) []Element {
	if n <= 0 {
		return []Element{}
	}
	if n > len(pool) {
		n = len(pool)
	}
	out := slices.Clone(pool)
	// partial Fisher-Yates: only the first n slots matter
	for i := 0; i < n; i++ {
		j := i + r.IntN(len(out)-i)
		out[i], out[j] = out[j], out[i]
	}
	return out[:n]
}

func Names(es []Element) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = string(e)
	}
	return out
}
