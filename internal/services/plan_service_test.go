package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patrimonio/internal/core"
	"patrimonio/internal/log"
	"patrimonio/internal/ports"
	"patrimonio/internal/storage/memory"
)

var fixedNow = time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)

func newPlanService(t *testing.T) (*PlanService, *ProjectionService, *memory.Store, *fakePublisher) {
	t.Helper()
	pub := &fakePublisher{}
	projections, store := newTestService(t, func(d *ProjectionDeps) { d.Publisher = pub })
	projections.now = func() time.Time { return fixedNow }
	plans := NewPlanService(store, projections, log.Discard())
	plans.now = func() time.Time { return fixedNow }
	return plans, projections, store, pub
}

func TestPlanService_Create(t *testing.T) {
	plans, _, _, _ := newPlanService(t)
	cfg := withSeed(testConfig(), 99)
	cfg.SampleCount = 0

	p, err := plans.Create(context.Background(), core.Plan{Name: " Pensione ", Config: cfg})
	require.NoError(t, err)

	assert.NotZero(t, p.ID)
	assert.Equal(t, "Pensione", p.Name)
	assert.Equal(t, core.Never, p.Cadence)
	assert.Nil(t, p.Config.Seed)
	assert.Equal(t, core.DefaultSampleCount, p.Config.SampleCount)
	assert.Equal(t, fixedNow, p.CreatedAt)
	assert.True(t, p.LastProjectedAt.IsZero())
}

func TestPlanService_CreateRejects(t *testing.T) {
	plans, _, _, _ := newPlanService(t)

	_, err := plans.Create(context.Background(), core.Plan{Name: "", Config: testConfig()})
	assert.ErrorIs(t, err, core.ErrInvalidPlan)

	_, err = plans.Create(context.Background(), core.Plan{Name: "x", Config: testConfig(), Cadence: "hourly"})
	assert.ErrorIs(t, err, core.ErrInvalidPlan)

	bad := testConfig()
	bad.HorizonYears = 0
	_, err = plans.Create(context.Background(), core.Plan{Name: "x", Config: bad})
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)

	huge := testConfig()
	huge.HorizonYears = 500
	_, err = plans.Create(context.Background(), core.Plan{Name: "x", Config: huge})
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestPlanService_Project(t *testing.T) {
	plans, projections, store, pub := newPlanService(t)
	ctx := context.Background()
	cfg := testConfig()
	cfg.StartYear = 0

	p, err := plans.Create(ctx, core.Plan{Name: "Casa", Config: cfg, UseSavedEvents: true})
	require.NoError(t, err)

	run, err := plans.Project(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, run.PlanID)
	assert.Equal(t, fixedNow.Year(), run.Request.Config.StartYear)
	assert.Equal(t, []string{run.ID}, pub.ids)

	stored, err := store.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, stored.LastProjectedAt)

	require.NoError(t, projections.ExecuteRun(ctx, run.ID))
	done, err := projections.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, core.RunDone, done.Status)

	_, err = plans.Project(ctx, 12345)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}
