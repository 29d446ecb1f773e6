package projection

import (
	"math"

	"patrimonio/internal/core"
)

const (
	criticalBelow = 50.0
	successAbove  = 80.0
)

var advisoryMessages = map[core.AdvisoryLevel]string{
	core.AdvisoryCritical: "Probabilità di successo bassa: aumenta il contributo mensile o posticipa l'obiettivo.",
	core.AdvisoryInfo:     "Obiettivo raggiungibile ma non garantito: valuta un piccolo aumento del contributo mensile.",
	core.AdvisorySuccess:  "Sei sulla buona strada: il piano raggiunge l'obiettivo nella maggior parte degli scenari.",
}

// EffectiveTarget deflates the target to today's money when the output is
// inflation adjusted.
func EffectiveTarget(cfg core.SimulationConfig) float64 {
	if !cfg.InflationAdjustOutput {
		return cfg.TargetAmount
	}
	return cfg.TargetAmount / math.Pow(1+cfg.InflationAnnualRate/100, float64(cfg.HorizonYears))
}

// EvaluateGoal scores the terminal wealth of every path against the target.
// The median is taken from the last band, not recomputed.
func EvaluateGoal(cfg core.SimulationConfig, terminal []float64, bands []core.PercentileBand) core.GoalOutcome {
	target := EffectiveTarget(cfg)
	hits := 0
	for _, w := range terminal {
		if w >= target {
			hits++
		}
	}
	probability := 0.0
	if len(terminal) > 0 {
		probability = 100 * float64(hits) / float64(len(terminal))
	}

	out := core.GoalOutcome{
		SuccessProbability: probability,
		EffectiveTarget:    target,
		Advisories:         []core.Advisory{Advise(probability)},
	}
	if len(bands) > 0 {
		out.MedianTerminalWealth = bands[len(bands)-1].P50
	}
	return out
}

// Advise picks the single advisory for a success probability.
func Advise(probability float64) core.Advisory {
	level := core.AdvisoryInfo
	switch {
	case probability < criticalBelow:
		level = core.AdvisoryCritical
	case probability > successAbove:
		level = core.AdvisorySuccess
	}
	return core.Advisory{Level: level, Message: advisoryMessages[level]}
}
