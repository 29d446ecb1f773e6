package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/subcommands"

	"patrimonio/internal/core"
	apphttp "patrimonio/internal/http"
	"patrimonio/internal/ports"
	"patrimonio/internal/projection"
	"patrimonio/internal/report"
	"patrimonio/internal/services"
	"patrimonio/internal/storage/memory"
)

type runCmd struct {
	env *environment

	wealth     float64
	monthly    float64
	years      int
	ret        float64
	volatility string
	profile    string
	bias       string
	inflation  float64
	real       bool
	goal       float64
	samples    int
	startYear  int
	seed       string
	workers    int
	timeout    time.Duration
	saved      bool
	eventsFile string
	events     eventList
	asJSON     bool
	style      string
	width      int
	label      string
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "simulate the wealth distribution over a horizon" }
func (*runCmd) Usage() string {
	return `proiezione run -wealth <euro> -monthly <euro> -years <n> [-return <%>] [-volatility <%> | -profile <name>] [-event "2030;expense;25000;Auto"]...

  Runs a Monte Carlo projection and prints the percentile bands, the goal
  analysis and the advisories. Use -seed to replay a previous run.

  The first simulated year is start-year+1. Events dated start-year or after
  the horizon are ignored and listed among the warnings.
`
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.Float64Var(&c.wealth, "wealth", 0, "Current wealth in euro")
	f.Float64Var(&c.monthly, "monthly", 0, "Monthly contribution in euro")
	f.IntVar(&c.years, "years", 20, "Projection horizon in years")
	f.Float64Var(&c.ret, "return", 6, "Expected annual return in percent")
	f.StringVar(&c.volatility, "volatility", "", "Annual volatility in percent (overrides -profile)")
	f.StringVar(&c.profile, "profile", "", "Risk profile: conservative, balanced, aggressive (default balanced)")
	f.StringVar(&c.bias, "bias", string(core.Base), "Scenario bias: bear, base, bull")
	f.Float64Var(&c.inflation, "inflation", 2, "Annual inflation in percent")
	f.BoolVar(&c.real, "real", false, "Report values in today's purchasing power")
	f.Float64Var(&c.goal, "goal", 0, "Target amount in euro (0 means no goal)")
	f.IntVar(&c.samples, "samples", c.env.cfg.DefaultSamples, "Number of simulated paths")
	f.IntVar(&c.startYear, "start-year", time.Now().Year(), "Calendar year of year 0")
	f.StringVar(&c.seed, "seed", "", "Seed for a reproducible run")
	f.IntVar(&c.workers, "workers", c.env.cfg.SimulationWorkers, "Worker pool size (0 means GOMAXPROCS)")
	f.DurationVar(&c.timeout, "timeout", c.env.cfg.SimulationTimeout, "Abort the run after this long")
	f.BoolVar(&c.saved, "saved", false, "Apply the life events saved in -db")
	f.StringVar(&c.eventsFile, "events-file", "", `Apply life events from a file of "year;kind;amount;name" lines`)
	f.Var(&c.events, "event", `Life event as "year;kind;amount;name", repeatable`)
	f.BoolVar(&c.asJSON, "json", false, "Print the full result as JSON")
	f.StringVar(&c.style, "style", "", "Glamour style (dark, light, notty; default auto)")
	f.IntVar(&c.width, "width", 100, "Wrap the report at this width")
	f.StringVar(&c.label, "label", "Proiezione", "Report title")
}

func (c *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	in, err := c.input()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	store, closeStore, err := c.eventStore(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeStore()
	in.UseSavedEvents = store != nil

	logger := c.env.logger()
	svc := services.NewProjectionService(services.ProjectionDeps{
		Engine: projection.NewEngine(projection.Options{Workers: c.workers, Logger: logger}),
		Events: store,
		Limits: services.Limits{
			MaxSamples:      c.env.cfg.MaxSamples,
			MaxHorizonYears: c.env.cfg.MaxHorizonYears,
		},
		Timeout: c.timeout,
		Logger:  logger,
	})

	res, _, err := svc.Project(ctx, in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	md, err := report.Markdown(c.label, res)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(md, c.style, c.width)
	return subcommands.ExitSuccess
}

// input turns the flags into a projection request, resolving the
// volatility from the risk profile the same way the HTTP API does.
func (c *runCmd) input() (services.ProjectionInput, error) {
	payload := apphttp.SimulationPayload{
		CurrentWealth:         c.wealth,
		MonthlyContribution:   c.monthly,
		HorizonYears:          c.years,
		ExpectedAnnualReturn:  c.ret,
		RiskProfile:           core.RiskProfile(strings.ToLower(c.profile)),
		ScenarioBias:          core.ScenarioBias(strings.ToLower(c.bias)),
		InflationAnnualRate:   c.inflation,
		InflationAdjustOutput: c.real,
		TargetAmount:          c.goal,
		SampleCount:           c.samples,
		StartYear:             c.startYear,
	}
	if c.volatility != "" {
		v, err := core.ParsePercent(c.volatility)
		if err != nil {
			return services.ProjectionInput{}, fmt.Errorf("invalid -volatility %q", c.volatility)
		}
		payload.AnnualVolatility = &v
	}
	if c.seed != "" {
		seed, err := strconv.ParseUint(c.seed, 10, 64)
		if err != nil {
			return services.ProjectionInput{}, fmt.Errorf("invalid -seed %q", c.seed)
		}
		payload.Seed = &seed
	}

	cfg, err := payload.Config(apphttp.ParseOptions{DefaultSamples: c.env.cfg.DefaultSamples})
	if err != nil {
		return services.ProjectionInput{}, err
	}
	return services.ProjectionInput{Config: cfg, Events: c.events}, nil
}

// eventStore returns the store of saved events to apply, or nil when the
// run uses inline events only.
func (c *runCmd) eventStore(ctx context.Context) (ports.LifeEventStore, func(), error) {
	switch {
	case c.eventsFile != "":
		store, err := memory.NewFromFile(c.eventsFile)
		if err != nil {
			return nil, func() {}, err
		}
		return store, func() {}, nil
	case c.saved:
		repo, err := openRepository(ctx, *c.env.dbPath)
		if err != nil {
			return nil, func() {}, err
		}
		return repo, func() { repo.Close() }, nil
	}
	return nil, func() {}, nil
}

// eventList collects repeated -event flags.
type eventList []core.LifeEvent

func (l *eventList) String() string {
	if l == nil {
		return ""
	}
	parts := make([]string, len(*l))
	for i, e := range *l {
		parts[i] = fmt.Sprintf("%d;%s;%.2f;%s", e.CalendarYear, e.Kind, e.Amount.Euros(), e.Name)
	}
	return strings.Join(parts, ", ")
}

func (l *eventList) Set(v string) error {
	e, err := memory.ParseEventLine(v)
	if err != nil {
		return err
	}
	*l = append(*l, e)
	return nil
}
