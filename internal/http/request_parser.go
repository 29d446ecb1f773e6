// Package http provides the JSON API server and its handlers.
//
// This file implements decoding of request bodies into domain values.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"patrimonio/internal/core"
	"patrimonio/internal/services"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

// SimulationPayload is the JSON form of a simulation configuration.
// AnnualVolatility is optional: when absent the risk profile decides it.
type SimulationPayload struct {
	CurrentWealth         float64           `json:"current_wealth"`
	MonthlyContribution   float64           `json:"monthly_contribution"`
	HorizonYears          int               `json:"horizon_years"`
	ExpectedAnnualReturn  float64           `json:"expected_annual_return"`
	AnnualVolatility      *float64          `json:"annual_volatility"`
	RiskProfile           core.RiskProfile  `json:"risk_profile"`
	ScenarioBias          core.ScenarioBias `json:"scenario_bias"`
	InflationAnnualRate   float64           `json:"inflation_annual_rate"`
	InflationAdjustOutput bool              `json:"inflation_adjust_output"`
	TargetAmount          float64           `json:"target_amount"`
	SampleCount           int               `json:"sample_count"`
	StartYear             int               `json:"start_year"`
	Seed                  *uint64           `json:"seed"`
}

// LifeEventPayload is the JSON form of a life event. Amount is euros, as a
// number or a string such as "1500,50".
type LifeEventPayload struct {
	Name         string             `json:"name"`
	CalendarYear int                `json:"calendar_year"`
	Amount       AmountField        `json:"amount"`
	Kind         core.LifeEventKind `json:"kind"`
}

type ProjectionPayload struct {
	Config         SimulationPayload  `json:"config"`
	Events         []LifeEventPayload `json:"events"`
	UseSavedEvents bool               `json:"use_saved_events"`
}

type PlanPayload struct {
	Name           string              `json:"name"`
	Config         SimulationPayload   `json:"config"`
	Cadence        core.RefreshCadence `json:"cadence"`
	UseSavedEvents bool                `json:"use_saved_events"`
}

// AmountField accepts a euro amount as a JSON number or string.
type AmountField string

func (a *AmountField) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = AmountField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*a = AmountField(n.String())
	return nil
}

// ParseOptions carries the defaults the server applies to incoming configs.
type ParseOptions struct {
	DefaultSamples int
	// StartYear fills a missing start_year. Zero leaves it unset.
	StartYear int
}

// Config converts the payload into a SimulationConfig.
func (p SimulationPayload) Config(opts ParseOptions) (core.SimulationConfig, error) {
	cfg := core.SimulationConfig{
		CurrentWealth:         p.CurrentWealth,
		MonthlyContribution:   p.MonthlyContribution,
		HorizonYears:          p.HorizonYears,
		ExpectedAnnualReturn:  p.ExpectedAnnualReturn,
		ScenarioBias:          p.ScenarioBias,
		InflationAnnualRate:   p.InflationAnnualRate,
		InflationAdjustOutput: p.InflationAdjustOutput,
		TargetAmount:          p.TargetAmount,
		SampleCount:           p.SampleCount,
		StartYear:             p.StartYear,
		Seed:                  p.Seed,
	}

	volatility, err := resolveVolatility(p.AnnualVolatility, p.RiskProfile)
	if err != nil {
		return core.SimulationConfig{}, err
	}
	cfg.AnnualVolatility = volatility

	if cfg.SampleCount == 0 && opts.DefaultSamples > 0 {
		cfg.SampleCount = opts.DefaultSamples
	}
	if cfg.StartYear == 0 {
		cfg.StartYear = opts.StartYear
	}
	return cfg.WithDefaults(), nil
}

// resolveVolatility prefers an explicit volatility over the risk profile.
// Without either the balanced profile applies.
func resolveVolatility(explicit *float64, profile core.RiskProfile) (float64, error) {
	if explicit != nil {
		return *explicit, nil
	}
	if profile == "" {
		profile = core.Balanced
	}
	v, ok := profile.BaselineVolatility()
	if !ok {
		return 0, &core.ConfigurationError{Field: "risk_profile", Reason: fmt.Sprintf("unknown value %q", profile)}
	}
	return v, nil
}

func (p LifeEventPayload) LifeEvent() (core.LifeEvent, error) {
	cents, err := core.ParseDecimalToCents(string(p.Amount))
	if err != nil {
		return core.LifeEvent{}, fmt.Errorf("%w: invalid amount %q", core.ErrInvalidLifeEvent, string(p.Amount))
	}
	return core.LifeEvent{
		Name:         sanitizeInput(p.Name),
		CalendarYear: p.CalendarYear,
		Amount:       core.Money{Cents: cents},
		Kind:         core.LifeEventKind(strings.ToLower(strings.TrimSpace(string(p.Kind)))),
	}, nil
}

func (p ProjectionPayload) Input(opts ParseOptions) (services.ProjectionInput, error) {
	cfg, err := p.Config.Config(opts)
	if err != nil {
		return services.ProjectionInput{}, err
	}
	events := make([]core.LifeEvent, 0, len(p.Events))
	for i, ep := range p.Events {
		e, err := ep.LifeEvent()
		if err != nil {
			return services.ProjectionInput{}, fmt.Errorf("events[%d]: %w", i, err)
		}
		events = append(events, e)
	}
	return services.ProjectionInput{Config: cfg, Events: events, UseSavedEvents: p.UseSavedEvents}, nil
}

// Plan converts the payload into a plan. The start year is left for the
// refresh to fill, so a plan keeps projecting from the current year.
func (p PlanPayload) Plan(opts ParseOptions) (core.Plan, error) {
	opts.StartYear = 0
	cfg, err := p.Config.Config(opts)
	if err != nil {
		return core.Plan{}, err
	}
	return core.Plan{
		Name:           sanitizeInput(p.Name),
		Config:         cfg,
		Cadence:        core.RefreshCadence(strings.ToLower(strings.TrimSpace(string(p.Cadence)))),
		UseSavedEvents: p.UseSavedEvents,
	}, nil
}

// decodeJSON reads exactly one JSON object from the body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: body must contain a single JSON object", errBadRequest)
	}
	return nil
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
	}
	return id, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
