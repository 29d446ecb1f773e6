package projection

import (
	"slices"

	"patrimonio/internal/core"
)

// Aggregate reads p10, p50 and p90 of every year index across paths by exact
// rank on the sorted values: sorted[floor(N*q)]. All paths must have the same
// length.
func Aggregate(paths []core.SimulatedPath) []core.PercentileBand {
	if len(paths) == 0 {
		return nil
	}
	n := len(paths)
	years := len(paths[0])
	bands := make([]core.PercentileBand, years)
	values := make([]float64, n)
	for y := range years {
		for i, p := range paths {
			values[i] = p[y].Wealth
		}
		slices.Sort(values)
		bands[y] = core.PercentileBand{
			Year: paths[0][y].Year,
			P10:  values[rank(n, 10)],
			P50:  values[rank(n, 50)],
			P90:  values[rank(n, 90)],
		}
	}
	return bands
}

// rank is floor(n*pct/100) in integer arithmetic.
func rank(n, pct int) int {
	return n * pct / 100
}
