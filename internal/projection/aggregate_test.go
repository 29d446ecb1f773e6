package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patrimonio/internal/core"
)

func flatPaths(values ...float64) []core.SimulatedPath {
	paths := make([]core.SimulatedPath, len(values))
	for i, v := range values {
		paths[i] = core.SimulatedPath{{Year: 0, Wealth: 1}, {Year: 1, Wealth: v}}
	}
	return paths
}

func TestAggregateExactRank(t *testing.T) {
	paths := flatPaths(10, 3, 7, 1, 9, 5, 2, 8, 6, 4)
	bands := Aggregate(paths)

	require.Len(t, bands, 2)
	assert.Equal(t, core.PercentileBand{Year: 0, P10: 1, P50: 1, P90: 1}, bands[0])
	// sorted[1], sorted[5], sorted[9]
	assert.Equal(t, core.PercentileBand{Year: 1, P10: 2, P50: 6, P90: 10}, bands[1])
}

func TestAggregateSmallSamplesCollide(t *testing.T) {
	bands := Aggregate(flatPaths(3, 1, 2))
	// floor(0.3)=0, floor(1.5)=1, floor(2.7)=2
	assert.Equal(t, core.PercentileBand{Year: 1, P10: 1, P50: 2, P90: 3}, bands[1])

	single := Aggregate(flatPaths(42))
	assert.Equal(t, core.PercentileBand{Year: 1, P10: 42, P50: 42, P90: 42}, single[1])
}

func TestAggregateDoesNotReorderPaths(t *testing.T) {
	paths := flatPaths(3, 1, 2)
	Aggregate(paths)
	assert.Equal(t, 3.0, paths[0][1].Wealth)
}

func TestAggregateEmpty(t *testing.T) {
	assert.Nil(t, Aggregate(nil))
}

func TestRank(t *testing.T) {
	assert.Equal(t, 100, rank(1000, 10))
	assert.Equal(t, 500, rank(1000, 50))
	assert.Equal(t, 900, rank(1000, 90))
	assert.Equal(t, 0, rank(1, 90))
}
