package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patrimonio/internal/core"
)

func ptr[T any](v T) *T { return &v }

func TestSimulationPayloadVolatility(t *testing.T) {
	tests := []struct {
		name    string
		payload SimulationPayload
		want    float64
		wantErr bool
	}{
		{"explicit wins over profile", SimulationPayload{AnnualVolatility: ptr(7.5), RiskProfile: core.Aggressive}, 7.5, false},
		{"explicit zero is kept", SimulationPayload{AnnualVolatility: ptr(0.0)}, 0, false},
		{"conservative profile", SimulationPayload{RiskProfile: core.Conservative}, 5, false},
		{"aggressive profile", SimulationPayload{RiskProfile: core.Aggressive}, 20, false},
		{"default is balanced", SimulationPayload{}, 12, false},
		{"unknown profile", SimulationPayload{RiskProfile: "reckless"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := tt.payload.Config(ParseOptions{})
			if tt.wantErr {
				require.ErrorIs(t, err, core.ErrInvalidConfiguration)
				var cfgErr *core.ConfigurationError
				require.True(t, errors.As(err, &cfgErr))
				assert.Equal(t, "risk_profile", cfgErr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.AnnualVolatility)
		})
	}
}

func TestSimulationPayloadDefaults(t *testing.T) {
	cfg, err := SimulationPayload{HorizonYears: 10}.Config(ParseOptions{DefaultSamples: 250, StartYear: 2026})
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.SampleCount)
	assert.Equal(t, 2026, cfg.StartYear)
	assert.Equal(t, core.Base, cfg.ScenarioBias)
	assert.Nil(t, cfg.Seed)

	cfg, err = SimulationPayload{HorizonYears: 10, SampleCount: 40, StartYear: 2030, Seed: ptr(uint64(9))}.
		Config(ParseOptions{DefaultSamples: 250, StartYear: 2026})
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.SampleCount)
	assert.Equal(t, 2030, cfg.StartYear)
	require.NotNil(t, cfg.Seed)
	assert.Equal(t, uint64(9), *cfg.Seed)

	cfg, err = SimulationPayload{HorizonYears: 10}.Config(ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, core.DefaultSampleCount, cfg.SampleCount)
}

func TestLifeEventPayload(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCents int64
		wantKind  core.LifeEventKind
		wantErr   bool
	}{
		{"number amount", `{"name":"Auto","calendar_year":2030,"amount":15000,"kind":"expense"}`, 1500000, core.Expense, false},
		{"decimal number", `{"name":"Bonus","calendar_year":2030,"amount":1500.5,"kind":"income"}`, 150050, core.Income, false},
		{"comma string", `{"name":"Bonus","calendar_year":2030,"amount":"1500,55","kind":" Income "}`, 150055, core.Income, false},
		{"zero amount", `{"name":"x","calendar_year":2030,"amount":0,"kind":"expense"}`, 0, "", true},
		{"negative amount", `{"name":"x","calendar_year":2030,"amount":"-5","kind":"expense"}`, 0, "", true},
		{"garbage amount", `{"name":"x","calendar_year":2030,"amount":"abc","kind":"expense"}`, 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p LifeEventPayload
			require.NoError(t, decodeJSON(httptest.NewRecorder(), r, &p))

			e, err := p.LifeEvent()
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidLifeEvent)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCents, e.Amount.Cents)
			assert.Equal(t, tt.wantKind, e.Kind)
		})
	}
}

func TestPlanPayloadLeavesStartYearOpen(t *testing.T) {
	p, err := PlanPayload{
		Name:    "  Pensione\x00 ",
		Cadence: "Monthly",
		Config:  SimulationPayload{HorizonYears: 20},
	}.Plan(ParseOptions{DefaultSamples: 500, StartYear: 2026})
	require.NoError(t, err)

	assert.Equal(t, "Pensione", p.Name)
	assert.Equal(t, core.Monthly, p.Cadence)
	assert.Zero(t, p.Config.StartYear)
	assert.Equal(t, 500, p.Config.SampleCount)
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"a"}`, false},
		{"trailing whitespace", "{\"name\":\"a\"}\n  ", false},
		{"empty", ``, true},
		{"unknown field", `{"nome":"a"}`, true},
		{"two objects", `{"name":"a"}{"name":"b"}`, true},
		{"not json", `name=a`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var v struct {
				Name string `json:"name"`
			}
			err := decodeJSON(httptest.NewRecorder(), r, &v)
			if tt.wantErr {
				assert.ErrorIs(t, err, errBadRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a", v.Name)
		})
	}
}

func TestDecodeJSONRejectsLargeBodies(t *testing.T) {
	body := `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var v struct {
		Name string `json:"name"`
	}
	assert.ErrorIs(t, decodeJSON(httptest.NewRecorder(), r, &v), errBadRequest)
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "ab\tc", sanitizeInput("  a\x01b\tc "))
	assert.Equal(t, "", sanitizeInput("   "))
}
