package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Bear ScenarioBias = "bear"
	Base ScenarioBias = "base"
	Bull ScenarioBias = "bull"
)

const (
	Conservative RiskProfile = "conservative"
	Balanced     RiskProfile = "balanced"
	Aggressive   RiskProfile = "aggressive"
)

const (
	Expense LifeEventKind = "expense"
	Income  LifeEventKind = "income"
)

const (
	Never   RefreshCadence = "none"
	Daily   RefreshCadence = "daily"
	Weekly  RefreshCadence = "weekly"
	Monthly RefreshCadence = "monthly"
)

// DefaultSampleCount is the number of paths simulated when the caller does
// not choose one.
const DefaultSampleCount = 1000

type (
	ScenarioBias   string
	RiskProfile    string
	LifeEventKind  string
	RefreshCadence string

	// SimulationConfig is the immutable input of one projection run.
	// Money fields are euros, rates are percentages (12 means 12%).
	SimulationConfig struct {
		CurrentWealth         float64      `json:"current_wealth"`
		MonthlyContribution   float64      `json:"monthly_contribution"`
		HorizonYears          int          `json:"horizon_years"`
		ExpectedAnnualReturn  float64      `json:"expected_annual_return"`
		AnnualVolatility      float64      `json:"annual_volatility"`
		ScenarioBias          ScenarioBias `json:"scenario_bias"`
		InflationAnnualRate   float64      `json:"inflation_annual_rate"`
		InflationAdjustOutput bool         `json:"inflation_adjust_output"`
		TargetAmount          float64      `json:"target_amount"`
		SampleCount           int          `json:"sample_count"`
		// StartYear labels year 0 of the projection. Zero keeps labels as offsets.
		StartYear int `json:"start_year"`
		// Seed makes the run reproducible. Nil lets the engine pick one.
		Seed *uint64 `json:"seed,omitempty"`
	}

	LifeEvent struct {
		ID           int64         `json:"id"`
		Name         string        `json:"name"`
		CalendarYear int           `json:"calendar_year"`
		Amount       Money         `json:"amount"`
		Kind         LifeEventKind `json:"kind"`
	}

	// Plan is a saved configuration that can be re-projected on a cadence.
	Plan struct {
		ID              int64            `json:"id"`
		Name            string           `json:"name"`
		Config          SimulationConfig `json:"config"`
		Cadence         RefreshCadence   `json:"cadence"`
		UseSavedEvents  bool             `json:"use_saved_events"`
		LastProjectedAt time.Time        `json:"last_projected_at,omitzero"`
		CreatedAt       time.Time        `json:"created_at"`
	}
)

var (
	ErrInvalidConfiguration = errors.New("invalid simulation configuration")
	ErrInvalidLifeEvent     = errors.New("invalid life event")
	ErrInvalidPlan          = errors.New("invalid plan")
)

// ConfigurationError reports the first field of a SimulationConfig that
// cannot be simulated.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

func invalid(field, reason string) error {
	return &ConfigurationError{Field: field, Reason: reason}
}

// BaselineVolatility returns the annual volatility percentage of the profile.
func (p RiskProfile) BaselineVolatility() (float64, bool) {
	switch p {
	case Conservative:
		return 5, true
	case Balanced:
		return 12, true
	case Aggressive:
		return 20, true
	}
	return 0, false
}

func (s ScenarioBias) Valid() bool {
	switch s {
	case Bear, Base, Bull, "":
		return true
	}
	return false
}

func (c RefreshCadence) Valid() bool {
	switch c {
	case Never, Daily, Weekly, Monthly, "":
		return true
	}
	return false
}

// WithDefaults fills the optional fields an input layer may leave empty.
func (c SimulationConfig) WithDefaults() SimulationConfig {
	if c.SampleCount == 0 {
		c.SampleCount = DefaultSampleCount
	}
	if c.ScenarioBias == "" {
		c.ScenarioBias = Base
	}
	return c
}

// Validate rejects configurations the engine must not start on.
func (c SimulationConfig) Validate() error {
	if c.HorizonYears <= 0 {
		return invalid("horizon_years", "must be at least 1")
	}
	if c.SampleCount <= 0 {
		return invalid("sample_count", "must be at least 1")
	}
	if c.CurrentWealth < 0 {
		return invalid("current_wealth", "must not be negative")
	}
	if c.MonthlyContribution < 0 {
		return invalid("monthly_contribution", "must not be negative")
	}
	if c.TargetAmount < 0 {
		return invalid("target_amount", "must not be negative")
	}
	if c.AnnualVolatility < 0 {
		return invalid("annual_volatility", "must not be negative")
	}
	if c.InflationAnnualRate <= -100 {
		return invalid("inflation_annual_rate", "must be greater than -100")
	}
	if !c.ScenarioBias.Valid() {
		return invalid("scenario_bias", fmt.Sprintf("unknown value %q", c.ScenarioBias))
	}
	return nil
}

// Clone returns a copy that does not share the seed pointer.
func (c SimulationConfig) Clone() SimulationConfig {
	if c.Seed != nil {
		s := *c.Seed
		c.Seed = &s
	}
	return c
}

// Signed returns the amount in euros with the sign of its effect on wealth.
func (e LifeEvent) Signed() float64 {
	if e.Kind == Expense {
		return -e.Amount.Euros()
	}
	return e.Amount.Euros()
}

func (e LifeEvent) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidLifeEvent)
	}
	if len(e.Name) > 200 {
		return fmt.Errorf("%w: name too long (max 200 characters)", ErrInvalidLifeEvent)
	}
	if e.CalendarYear < 1900 || e.CalendarYear > 3000 {
		return fmt.Errorf("%w: calendar year %d out of range", ErrInvalidLifeEvent, e.CalendarYear)
	}
	if err := e.Amount.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLifeEvent, err)
	}
	switch e.Kind {
	case Expense, Income:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidLifeEvent, e.Kind)
	}
	return nil
}

func (p Plan) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidPlan)
	}
	if !p.Cadence.Valid() {
		return fmt.Errorf("%w: unknown cadence %q", ErrInvalidPlan, p.Cadence)
	}
	return p.Config.WithDefaults().Validate()
}
