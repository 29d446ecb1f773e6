package core

import (
	"errors"
	"testing"
)

func validConfig() SimulationConfig {
	return SimulationConfig{
		CurrentWealth:        1000000,
		MonthlyContribution:  50000,
		HorizonYears:         10,
		ExpectedAnnualReturn: 12,
		AnnualVolatility:     12,
		ScenarioBias:         Base,
		TargetAmount:         5000000,
		SampleCount:          1000,
	}
}

func TestSimulationConfigValidate(t *testing.T) {
	cases := []struct {
		name  string
		mut   func(*SimulationConfig)
		field string
	}{
		{"valid", func(*SimulationConfig) {}, ""},
		{"zero horizon", func(c *SimulationConfig) { c.HorizonYears = 0 }, "horizon_years"},
		{"negative horizon", func(c *SimulationConfig) { c.HorizonYears = -3 }, "horizon_years"},
		{"zero samples", func(c *SimulationConfig) { c.SampleCount = 0 }, "sample_count"},
		{"negative wealth", func(c *SimulationConfig) { c.CurrentWealth = -1 }, "current_wealth"},
		{"zero wealth ok", func(c *SimulationConfig) { c.CurrentWealth = 0 }, ""},
		{"negative contribution", func(c *SimulationConfig) { c.MonthlyContribution = -10 }, "monthly_contribution"},
		{"negative volatility", func(c *SimulationConfig) { c.AnnualVolatility = -1 }, "annual_volatility"},
		{"inflation at -100", func(c *SimulationConfig) { c.InflationAnnualRate = -100 }, "inflation_annual_rate"},
		{"unknown scenario", func(c *SimulationConfig) { c.ScenarioBias = "sideways" }, "scenario_bias"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mut(&cfg)
			err := cfg.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("expected ok, got %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			var cerr *ConfigurationError
			if !errors.As(err, &cerr) || cerr.Field != tc.field {
				t.Fatalf("expected field %q, got %v", tc.field, err)
			}
		})
	}
}

func TestWithDefaults(t *testing.T) {
	cfg := SimulationConfig{HorizonYears: 5}.WithDefaults()
	if cfg.SampleCount != DefaultSampleCount {
		t.Errorf("SampleCount = %d, want %d", cfg.SampleCount, DefaultSampleCount)
	}
	if cfg.ScenarioBias != Base {
		t.Errorf("ScenarioBias = %q, want base", cfg.ScenarioBias)
	}

	explicit := SimulationConfig{SampleCount: 7, ScenarioBias: Bear}.WithDefaults()
	if explicit.SampleCount != 7 || explicit.ScenarioBias != Bear {
		t.Errorf("explicit values overwritten: %+v", explicit)
	}
}

func TestRiskProfileBaselineVolatility(t *testing.T) {
	cases := map[RiskProfile]float64{
		Conservative: 5,
		Balanced:     12,
		Aggressive:   20,
	}
	for p, want := range cases {
		got, ok := p.BaselineVolatility()
		if !ok || got != want {
			t.Errorf("%s: got %v (ok=%v), want %v", p, got, ok, want)
		}
	}
	if _, ok := RiskProfile("yolo").BaselineVolatility(); ok {
		t.Error("unknown profile should not resolve")
	}
}

func TestCloneDetachesSeed(t *testing.T) {
	seed := uint64(42)
	cfg := validConfig()
	cfg.Seed = &seed
	clone := cfg.Clone()
	*clone.Seed = 7
	if *cfg.Seed != 42 {
		t.Fatalf("clone shares seed pointer")
	}
}

func TestLifeEventValidate(t *testing.T) {
	good := LifeEvent{Name: "Casa", CalendarYear: 2030, Amount: Money{Cents: 100}, Kind: Expense}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []LifeEvent{
		{Name: "", CalendarYear: 2030, Amount: Money{Cents: 100}, Kind: Expense},
		{Name: "x", CalendarYear: 10, Amount: Money{Cents: 100}, Kind: Expense},
		{Name: "x", CalendarYear: 2030, Amount: Money{Cents: 0}, Kind: Expense},
		{Name: "x", CalendarYear: 2030, Amount: Money{Cents: 100}, Kind: "gift"},
	}
	for i, e := range bads {
		if err := e.Validate(); !errors.Is(err, ErrInvalidLifeEvent) {
			t.Fatalf("case %d expected ErrInvalidLifeEvent, got %v", i, err)
		}
	}
}

func TestLifeEventSigned(t *testing.T) {
	exp := LifeEvent{Amount: Money{Cents: 1050}, Kind: Expense}
	inc := LifeEvent{Amount: Money{Cents: 1050}, Kind: Income}
	if exp.Signed() != -10.5 {
		t.Errorf("expense signed = %v", exp.Signed())
	}
	if inc.Signed() != 10.5 {
		t.Errorf("income signed = %v", inc.Signed())
	}
}

func TestPlanValidate(t *testing.T) {
	p := Plan{Name: "Pensione", Config: validConfig(), Cadence: Monthly}
	if err := p.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	p.Cadence = "hourly"
	if err := p.Validate(); !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}
	p.Cadence = Never
	p.Config.HorizonYears = 0
	if err := p.Validate(); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
