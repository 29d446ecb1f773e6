package projection

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type zeroSource struct{}

func (zeroSource) Uint64() uint64 { return 0 }

func TestIrwinHallMoments(t *testing.T) {
	g := PathShocks(7, 0)
	const n = 200000
	var sum, sumSq float64
	for range n {
		z := g.Next()
		sum += z
		sumSq += z * z
	}
	mean := sum / n
	variance := sumSq/n - mean*mean

	assert.InDelta(t, 0, mean, 0.02)
	assert.InDelta(t, 1, variance, 0.03)
}

func TestIrwinHallBounded(t *testing.T) {
	g := PathShocks(99, 3)
	limit := 3 / math.Sqrt(0.5)
	for range 100000 {
		z := g.Next()
		require.LessOrEqual(t, math.Abs(z), limit)
	}
}

func TestIrwinHallExactFormula(t *testing.T) {
	// All uniforms at zero: (0 - 3) / sqrt(0.5).
	g := NewIrwinHall(rand.New(zeroSource{}))
	assert.InDelta(t, -3/math.Sqrt(0.5), g.Next(), 1e-12)
}

func TestPathShocksDeterministic(t *testing.T) {
	a, b := PathShocks(42, 5), PathShocks(42, 5)
	other := PathShocks(42, 6)
	differs := false
	for range 100 {
		x, y, z := a.Next(), b.Next(), other.Next()
		require.Equal(t, x, y)
		if x != z {
			differs = true
		}
	}
	assert.True(t, differs, "distinct paths should draw distinct streams")
}
