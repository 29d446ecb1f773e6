package core

import "time"

const (
	AdvisoryCritical AdvisoryLevel = "critical"
	AdvisoryInfo     AdvisoryLevel = "info"
	AdvisorySuccess  AdvisoryLevel = "success"
)

const (
	RunQueued  RunStatus = "queued"
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunFailed  RunStatus = "failed"
)

type (
	AdvisoryLevel string
	RunStatus     string

	// YearSnapshot is the wealth of one path at the end of a simulated year.
	YearSnapshot struct {
		Year   int     `json:"year"`
		Wealth float64 `json:"wealth"`
	}

	// SimulatedPath holds horizonYears+1 snapshots, year 0 included.
	SimulatedPath []YearSnapshot

	PercentileBand struct {
		Year int     `json:"year"`
		P10  float64 `json:"p10"`
		P50  float64 `json:"p50"`
		P90  float64 `json:"p90"`
	}

	Advisory struct {
		Level   AdvisoryLevel `json:"level"`
		Message string        `json:"message"`
	}

	GoalOutcome struct {
		SuccessProbability   float64    `json:"success_probability"`
		MedianTerminalWealth float64    `json:"median_terminal_wealth"`
		EffectiveTarget      float64    `json:"effective_target"`
		Advisories           []Advisory `json:"advisories"`
	}

	// ProjectionResult is everything a run produces.
	ProjectionResult struct {
		Seed                uint64           `json:"seed"`
		Config              SimulationConfig `json:"config"`
		EffectiveReturn     float64          `json:"effective_return"`
		EffectiveVolatility float64          `json:"effective_volatility"`
		Bands               []PercentileBand `json:"bands"`
		Goal                GoalOutcome      `json:"goal"`
		Warnings            []string         `json:"warnings,omitempty"`
		Paths               []SimulatedPath  `json:"paths,omitempty"`
		Duration            time.Duration    `json:"duration_ns"`
	}

	// ProjectionRequest is the persisted input of an asynchronous run.
	ProjectionRequest struct {
		Config SimulationConfig `json:"config"`
		Events []LifeEvent      `json:"events"`
	}

	ProjectionRun struct {
		ID         string            `json:"id"`
		PlanID     int64             `json:"plan_id,omitempty"`
		Status     RunStatus         `json:"status"`
		Request    ProjectionRequest `json:"request"`
		Result     *ProjectionResult `json:"result,omitempty"`
		Error      string            `json:"error,omitempty"`
		CreatedAt  time.Time         `json:"created_at"`
		StartedAt  time.Time         `json:"started_at,omitzero"`
		FinishedAt time.Time         `json:"finished_at,omitzero"`
	}
)

// Terminal returns the final band of the result.
func (r *ProjectionResult) Terminal() PercentileBand {
	if len(r.Bands) == 0 {
		return PercentileBand{}
	}
	return r.Bands[len(r.Bands)-1]
}

// Final reports whether a run status will not change anymore.
func (s RunStatus) Final() bool {
	return s == RunDone || s == RunFailed
}
