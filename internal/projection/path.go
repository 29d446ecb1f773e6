package projection

import (
	"math"

	"patrimonio/internal/core"
)

// SimulatePath advances one wealth trajectory month by month and returns its
// yearly snapshots, year 0 included.
//
// Month m belongs to simulated year k = (m-1)/12 + 1, labeled StartYear+k.
// Events of that calendar year are netted in at the ApplicationMonth of
// simulated year k, so they always precede the snapshot carrying their label.
func SimulatePath(cfg core.SimulationConfig, p Parameters, shocks ShockGenerator, overlay Overlay) core.SimulatedPath {
	months := cfg.HorizonYears * 12
	path := make(core.SimulatedPath, 0, cfg.HorizonYears+1)
	path = append(path, core.YearSnapshot{Year: cfg.StartYear, Wealth: cfg.CurrentWealth})

	drift := p.Mean / 12
	diffusion := p.Volatility / math.Sqrt(12)
	inflation := 1 + cfg.InflationAnnualRate/100

	wealth := cfg.CurrentWealth
	for m := 1; m <= months; m++ {
		r := drift + diffusion*shocks.Next()
		wealth = wealth*(1+r) + cfg.MonthlyContribution

		year := (m-1)/12 + 1
		if (m-1)%12+1 == ApplicationMonth {
			if net, ok := overlay.NetFor(cfg.StartYear + year); ok {
				wealth += net
			}
		}

		wealth = math.Max(wealth, 0)

		if m%12 == 0 {
			v := wealth
			if cfg.InflationAdjustOutput {
				v = wealth / math.Pow(inflation, float64(m)/12)
			}
			path = append(path, core.YearSnapshot{Year: cfg.StartYear + year, Wealth: v})
		}
	}
	return path
}
