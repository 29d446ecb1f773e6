package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patrimonio/internal/cache"
	"patrimonio/internal/core"
	"patrimonio/internal/log"
	"patrimonio/internal/middleware/ratelimit"
	"patrimonio/internal/observability"
	"patrimonio/internal/projection"
	"patrimonio/internal/services"
	"patrimonio/internal/storage/memory"
)

type testServer struct {
	srv         *Server
	store       *memory.Store
	projections *services.ProjectionService
}

func newTestServer(t *testing.T, mutate func(*Options)) *testServer {
	t.Helper()
	store := memory.New()
	logger := log.Discard()
	metrics := observability.NewMetrics("test")

	projections := services.NewProjectionService(services.ProjectionDeps{
		Engine:  projection.NewEngine(projection.Options{Workers: 2, Logger: logger}),
		Events:  store,
		Runs:    store,
		Cache:   cache.NewLRUCache[*core.ProjectionResult](16, time.Minute),
		Metrics: metrics,
		Limits:  services.Limits{MaxSamples: 5000, MaxHorizonYears: 60},
		Timeout: 10 * time.Second,
		Logger:  logger,
	})
	svc := Services{
		Projections: projections,
		Events:      services.NewEventService(store, logger),
		Plans:       services.NewPlanService(store, projections, logger),
	}

	opts := Options{
		DefaultSamples: 100,
		RateLimit:      ratelimit.Config{RequestsPerMinute: 1000},
		Metrics:        metrics,
		Logger:         logger,
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv := NewServer(":0", svc, opts)
	srv.now = func() time.Time { return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC) }
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return &testServer{srv: srv, store: store, projections: projections}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const seededProjection = `{
	"config": {
		"current_wealth": 10000,
		"monthly_contribution": 500,
		"horizon_years": 10,
		"expected_annual_return": 6,
		"risk_profile": "balanced",
		"target_amount": 60000,
		"sample_count": 200,
		"seed": 42
	},
	"events": [{"name": "Auto", "calendar_year": 2030, "amount": "8000", "kind": "expense"}]
}`

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, func(o *Options) {
		o.ReadyChecks = map[string]ReadyCheck{
			"storage": func(context.Context) error { return nil },
		}
	})

	rec := ts.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = ts.do(t, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}](t, rec)
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, "ok", body.Checks["storage"])
}

func TestReadyReportsFailingDependency(t *testing.T) {
	ts := newTestServer(t, func(o *Options) {
		o.ReadyChecks = map[string]ReadyCheck{
			"amqp": func(context.Context) error { return errors.New("connection refused") },
		}
	})

	rec := ts.do(t, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed: connection refused")
}

func TestProjectSynchronous(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/projections", seededProjection)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "42", rec.Header().Get("X-Projection-Seed"))

	res := decode[core.ProjectionResult](t, rec)
	assert.Equal(t, uint64(42), res.Seed)
	assert.Equal(t, 12.0, res.Config.AnnualVolatility, "balanced profile")
	assert.Equal(t, 2026, res.Config.StartYear)
	require.Len(t, res.Bands, 11)
	assert.Equal(t, 2026, res.Bands[0].Year)
	assert.Equal(t, 2036, res.Bands[10].Year)
	for _, b := range res.Bands {
		assert.LessOrEqual(t, b.P10, b.P50)
		assert.LessOrEqual(t, b.P50, b.P90)
	}
	assert.NotEmpty(t, res.Goal.Advisories)

	again := ts.do(t, http.MethodPost, "/api/projections", seededProjection)
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, "HIT", again.Header().Get("X-Cache"))
	assert.Equal(t, res.Bands, decode[core.ProjectionResult](t, again).Bands)
}

func TestProjectUnseededReportsSeed(t *testing.T) {
	ts := newTestServer(t, nil)
	body := `{"config": {"current_wealth": 1000, "horizon_years": 3, "annual_volatility": 0}}`

	rec := ts.do(t, http.MethodPost, "/api/projections", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	res := decode[core.ProjectionResult](t, rec)
	assert.Equal(t, 100, res.Config.SampleCount, "server default")
	assert.NotEmpty(t, rec.Header().Get("X-Projection-Seed"))
	assert.NotEmpty(t, res.Warnings, "zero volatility is clamped")
}

func TestProjectErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name     string
		body     string
		wantCode int
		contains string
	}{
		{"malformed json", `{"config":`, http.StatusBadRequest, "bad request"},
		{"unknown field", `{"config":{"horizon_years":5},"extra":1}`, http.StatusBadRequest, "extra"},
		{"zero horizon", `{"config":{"horizon_years":0}}`, http.StatusBadRequest, "horizon_years"},
		{"negative wealth", `{"config":{"horizon_years":5,"current_wealth":-1}}`, http.StatusBadRequest, "current_wealth"},
		{"unknown scenario", `{"config":{"horizon_years":5,"scenario_bias":"sideways"}}`, http.StatusBadRequest, "scenario_bias"},
		{"unknown risk profile", `{"config":{"horizon_years":5,"risk_profile":"yolo"}}`, http.StatusBadRequest, "risk_profile"},
		{"invalid event", `{"config":{"horizon_years":5},"events":[{"name":"","calendar_year":2030,"amount":1,"kind":"expense"}]}`, http.StatusBadRequest, "life event"},
		{"too many samples", `{"config":{"horizon_years":5,"sample_count":999999}}`, http.StatusUnprocessableEntity, "sample_count"},
		{"horizon too long", `{"config":{"horizon_years":61}}`, http.StatusUnprocessableEntity, "horizon_years"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/projections", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodGet, "/api/projections", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAsyncRunLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/projections/runs", seededProjection)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	run := decode[core.ProjectionRun](t, rec)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, core.RunQueued, run.Status)
	assert.Equal(t, "/api/projections/runs/"+run.ID, rec.Header().Get("Location"))

	// no publisher: the run executes in-process
	ts.projections.Wait()

	rec = ts.do(t, http.MethodGet, "/api/projections/runs/"+run.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	done := decode[core.ProjectionRun](t, rec)
	assert.Equal(t, core.RunDone, done.Status)
	require.NotNil(t, done.Result)
	assert.Equal(t, uint64(42), done.Result.Seed)

	rec = ts.do(t, http.MethodGet, "/api/projections/runs/"+run.ID+"/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Proiezione "+run.ID)
	assert.Contains(t, rec.Body.String(), "| 2036 |")
}

func TestRunNotFoundAndNotReady(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/projections/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	queued := core.ProjectionRun{ID: "queued-run", Status: core.RunQueued, CreatedAt: time.Now().UTC()}
	require.NoError(t, ts.store.CreateRun(context.Background(), queued))
	rec = ts.do(t, http.MethodGet, "/api/projections/runs/queued-run/report", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "queued")
}

func TestLifeEventsCRUD(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/life-events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/life-events", `{"name":"Eredità","calendar_year":2031,"amount":"25000","kind":"income"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[core.LifeEvent](t, rec)
	assert.Positive(t, created.ID)
	assert.Equal(t, int64(2500000), created.Amount.Cents)

	rec = ts.do(t, http.MethodPost, "/api/life-events", `{"name":"x","calendar_year":1800,"amount":"1","kind":"income"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/life-events", "")
	assert.Len(t, decode[[]core.LifeEvent](t, rec), 1)

	rec = ts.do(t, http.MethodDelete, "/api/life-events/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path := "/api/life-events/" + jsonID(created.ID)
	rec = ts.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSavedEventsFeedProjection(t *testing.T) {
	ts := newTestServer(t, nil)
	base := `{"config":{"current_wealth":10000,"horizon_years":5,"annual_volatility":0,"expected_annual_return":0,"sample_count":10,"seed":1}%s}`

	rec := ts.do(t, http.MethodPost, "/api/life-events", `{"name":"Premio","calendar_year":2028,"amount":5000,"kind":"income"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	without := decode[core.ProjectionResult](t, ts.do(t, http.MethodPost, "/api/projections", strings.Replace(base, "%s", "", 1)))
	with := decode[core.ProjectionResult](t, ts.do(t, http.MethodPost, "/api/projections", strings.Replace(base, "%s", `,"use_saved_events":true`, 1)))

	assert.Greater(t, with.Terminal().P50, without.Terminal().P50)
}

func TestPlans(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/plans", `{"name":"Pensione","cadence":"weekly","config":{"current_wealth":50000,"horizon_years":20,"risk_profile":"conservative","seed":7}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	plan := decode[core.Plan](t, rec)
	assert.Equal(t, core.Weekly, plan.Cadence)
	assert.Equal(t, 5.0, plan.Config.AnnualVolatility)
	assert.Nil(t, plan.Config.Seed, "plans never keep a seed")
	assert.Zero(t, plan.Config.StartYear)
	assert.Equal(t, "/api/plans/"+jsonID(plan.ID), rec.Header().Get("Location"))

	rec = ts.do(t, http.MethodPost, "/api/plans", `{"name":"x","cadence":"hourly","config":{"horizon_years":5}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/plans", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.Plan](t, rec), 1)

	rec = ts.do(t, http.MethodGet, "/api/plans/"+jsonID(plan.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Pensione", decode[core.Plan](t, rec).Name)

	rec = ts.do(t, http.MethodGet, "/api/plans/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/plans/"+jsonID(plan.ID)+"/runs", "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	run := decode[core.ProjectionRun](t, rec)
	assert.Equal(t, plan.ID, run.PlanID)

	ts.projections.Wait()
	finished, err := ts.store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, core.RunDone, finished.Status)
}

func TestRateLimitOnPost(t *testing.T) {
	ts := newTestServer(t, func(o *Options) {
		o.RateLimit = ratelimit.Config{RequestsPerMinute: 2, Methods: []string{http.MethodPost}}
	})
	body := `{"name":"a","calendar_year":2030,"amount":1,"kind":"income"}`

	for range 2 {
		require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/life-events", body).Code)
	}
	rec := ts.do(t, http.MethodPost, "/api/life-events", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate limit")

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/life-events", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.do(t, http.MethodPost, "/api/projections", seededProjection)

	rec := ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_projection_runs_total")
	assert.Contains(t, rec.Body.String(), "test_http_requests_total")
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
