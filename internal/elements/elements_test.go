package elements

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawDistinct(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))

	for _, n := range []int{0, 1, 3, 9, 10, 11, 50} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			for range 200 {
				got := DrawDistinct(r, n)
				require.Len(t, got, min(n, len(Catalog)))

				seen := map[Element]bool{}
				for _, e := range got {
					assert.True(t, Valid(e), "unknown element %q", e)
					assert.False(t, seen[e], "duplicate element %q in %v", e, got)
					seen[e] = true
				}
			}
		})
	}
}

func TestDrawDistinct_DoesNotMutateCatalog(t *testing.T) {
	before := append([]Element(nil), Catalog...)
	DrawDistinct(rand.New(rand.NewPCG(3, 4)), 5)
	assert.Equal(t, before, Catalog)
}

func TestDrawExcluding(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	taken := []Element{Fire, Water, Earth}

	for range 200 {
		e := DrawExcluding(r, taken)
		assert.NotContains(t, taken, e)
	}

	// everything taken: still returns a catalog element
	assert.True(t, Valid(DrawExcluding(r, Catalog)))
}
