package projection

import (
	"fmt"

	"patrimonio/internal/core"
)

// MinVolatility is the floor applied to the effective annual volatility.
const MinVolatility = 0.01

// Parameters are the effective annual return and volatility of a run,
// expressed as fractions.
type Parameters struct {
	Mean       float64
	Volatility float64
}

type bias struct {
	mean       float64
	volatility float64
}

var scenarioBiases = map[core.ScenarioBias]bias{
	core.Bear: {mean: -0.04, volatility: 0.05},
	core.Base: {},
	core.Bull: {mean: 0.04, volatility: -0.02},
}

// Resolve applies the scenario bias to the configured return and volatility.
// A volatility below MinVolatility is clamped and reported as a warning.
func Resolve(cfg core.SimulationConfig) (Parameters, []string) {
	b := scenarioBiases[cfg.ScenarioBias]
	p := Parameters{
		Mean:       cfg.ExpectedAnnualReturn/100 + b.mean,
		Volatility: cfg.AnnualVolatility/100 + b.volatility,
	}

	var warnings []string
	if p.Volatility < MinVolatility {
		warnings = append(warnings, fmt.Sprintf(
			"effective volatility %.4f (scenario %s) below floor, clamped to %.2f",
			p.Volatility, cfg.ScenarioBias, MinVolatility))
		p.Volatility = MinVolatility
	}
	return p, warnings
}
