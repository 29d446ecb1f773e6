package projection

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"patrimonio/internal/core"
	"patrimonio/internal/log"
)

// Options configures an Engine.
type Options struct {
	// Workers is the size of the path pool. Zero means GOMAXPROCS.
	Workers int
	// RetainPaths keeps every simulated path in the result.
	RetainPaths bool
	Logger      *log.Logger
}

// Engine runs projections. It is safe for concurrent use and holds no state
// between runs.
type Engine struct {
	workers int
	retain  bool
	logger  *log.Logger
}

// Outcome is the value delivered by Submit.
type Outcome struct {
	Result *core.ProjectionResult
	Err    error
}

func NewEngine(opts Options) *Engine {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		workers: workers,
		retain:  opts.RetainPaths,
		logger:  logger.WithComponent(log.ComponentProjection),
	}
}

// Workers returns the pool size used for runs.
func (e *Engine) Workers() int {
	return e.workers
}

// Run validates cfg, simulates every path and aggregates them. Cancelling ctx
// stops the run between paths and returns ctx.Err() with no result.
func (e *Engine) Run(ctx context.Context, cfg core.SimulationConfig, events []core.LifeEvent) (*core.ProjectionResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	cfg = cfg.Clone()
	seed := rand.Uint64()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	cfg.Seed = &seed

	params, warnings := Resolve(cfg)
	for _, w := range warnings {
		e.logger.WarnContext(ctx, "Volatility clamped",
			log.FieldScenario, cfg.ScenarioBias,
			log.FieldVolatility, MinVolatility,
			"detail", w)
	}
	overlay := NewOverlay(events)
	// The first simulated year is StartYear+1: events dated StartYear or
	// past the horizon are ignored and reported.
	first, last := cfg.StartYear+1, cfg.StartYear+cfg.HorizonYears
	for _, y := range overlay.Outside(first, last) {
		warnings = append(warnings, fmt.Sprintf(
			"life events dated %d fall outside the simulated years %d-%d and were ignored", y, first, last))
	}

	paths, err := e.simulate(ctx, cfg, params, overlay, seed)
	if err != nil {
		e.logger.WarnContext(ctx, "Projection aborted", log.FieldSeed, seed, log.FieldError, err)
		return nil, err
	}

	bands := Aggregate(paths)
	terminal := make([]float64, len(paths))
	for i, p := range paths {
		terminal[i] = p[len(p)-1].Wealth
	}
	goal := EvaluateGoal(cfg, terminal, bands)

	res := &core.ProjectionResult{
		Seed:                seed,
		Config:              cfg,
		EffectiveReturn:     params.Mean,
		EffectiveVolatility: params.Volatility,
		Bands:               bands,
		Goal:                goal,
		Warnings:            warnings,
		Duration:            time.Since(start),
	}
	if e.retain {
		res.Paths = paths
	}

	e.logger.DebugContext(ctx, "Projection completed",
		log.FieldSamples, cfg.SampleCount,
		log.FieldHorizon, cfg.HorizonYears,
		log.FieldSeed, seed,
		log.FieldWorkers, e.Workers(),
		log.FieldEventYears, overlay.Years(),
		log.FieldSuccessProbability, goal.SuccessProbability,
		log.FieldDuration, res.Duration.Milliseconds())
	return res, nil
}

// simulate fans the paths out over the worker pool. Each worker pulls the
// next path index and writes only its own slot.
func (e *Engine) simulate(ctx context.Context, cfg core.SimulationConfig, params Parameters, overlay Overlay, seed uint64) ([]core.SimulatedPath, error) {
	paths := make([]core.SimulatedPath, cfg.SampleCount)
	workers := min(e.workers, cfg.SampleCount)

	var next atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for range workers {
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				i := int(next.Add(1) - 1)
				if i >= len(paths) {
					return nil
				}
				paths[i] = SimulatePath(cfg, params, PathShocks(seed, i), overlay)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// Submit starts a run in the background and returns a channel that delivers
// exactly one Outcome. Inputs are copied before the call returns.
func (e *Engine) Submit(ctx context.Context, cfg core.SimulationConfig, events []core.LifeEvent) <-chan Outcome {
	out := make(chan Outcome, 1)
	cfg = cfg.Clone()
	events = slices.Clone(events)
	go func() {
		defer close(out)
		res, err := e.Run(ctx, cfg, events)
		out <- Outcome{Result: res, Err: err}
	}()
	return out
}
