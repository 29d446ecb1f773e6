// Package memory keeps life events, plans and runs in process memory.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"patrimonio/internal/core"
	"patrimonio/internal/ports"
)

type Store struct {
	mu          sync.Mutex
	events      []core.LifeEvent
	plans       map[int64]core.Plan
	runs        map[string]core.ProjectionRun
	nextEventID int64
	nextPlanID  int64
}

var (
	_ ports.LifeEventStore = (*Store)(nil)
	_ ports.PlanStore      = (*Store)(nil)
	_ ports.RunStore       = (*Store)(nil)
)

func New() *Store {
	return &Store{
		plans: make(map[int64]core.Plan),
		runs:  make(map[string]core.ProjectionRun),
	}
}

// NewFromFile seeds life events from lines of the form
// "year;kind;amount;name", e.g. "2030;expense;25000,00;Auto".
// A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e, err := ParseEventLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		if _, err := s.CreateLifeEvent(context.Background(), e); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return s, nil
}

// ParseEventLine parses one "year;kind;amount;name" line into a validated event.
func ParseEventLine(line string) (core.LifeEvent, error) {
	parts := strings.SplitN(line, ";", 4)
	if len(parts) != 4 {
		return core.LifeEvent{}, fmt.Errorf("expected 4 fields, got %d", len(parts))
	}
	year, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return core.LifeEvent{}, fmt.Errorf("invalid year %q", parts[0])
	}
	cents, err := core.ParseDecimalToCents(parts[2])
	if err != nil {
		return core.LifeEvent{}, fmt.Errorf("invalid amount %q: %w", parts[2], err)
	}
	e := core.LifeEvent{
		Name:         strings.TrimSpace(parts[3]),
		CalendarYear: year,
		Amount:       core.Money{Cents: cents},
		Kind:         core.LifeEventKind(strings.ToLower(strings.TrimSpace(parts[1]))),
	}
	return e, e.Validate()
}

func (s *Store) ListLifeEvents(_ context.Context) ([]core.LifeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.events)
	slices.SortStableFunc(out, func(a, b core.LifeEvent) int {
		if a.CalendarYear != b.CalendarYear {
			return a.CalendarYear - b.CalendarYear
		}
		return int(a.ID - b.ID)
	})
	return out, nil
}

func (s *Store) CreateLifeEvent(_ context.Context, e core.LifeEvent) (core.LifeEvent, error) {
	if err := e.Validate(); err != nil {
		return core.LifeEvent{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEventID++
	e.ID = s.nextEventID
	s.events = append(s.events, e)
	return e, nil
}

func (s *Store) DeleteLifeEvent(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.events, func(e core.LifeEvent) bool { return e.ID == id })
	if i < 0 {
		return fmt.Errorf("life event %d: %w", id, ports.ErrNotFound)
	}
	s.events = slices.Delete(s.events, i, i+1)
	return nil
}

func (s *Store) SavePlan(_ context.Context, p core.Plan) (core.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		s.nextPlanID++
		p.ID = s.nextPlanID
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}
	} else {
		old, ok := s.plans[p.ID]
		if !ok {
			return core.Plan{}, fmt.Errorf("plan %d: %w", p.ID, ports.ErrNotFound)
		}
		p.CreatedAt = old.CreatedAt
		p.LastProjectedAt = old.LastProjectedAt
	}
	p.Config = p.Config.Clone()
	s.plans[p.ID] = p
	return p, nil
}

func (s *Store) GetPlan(_ context.Context, id int64) (core.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return core.Plan{}, fmt.Errorf("plan %d: %w", id, ports.ErrNotFound)
	}
	p.Config = p.Config.Clone()
	return p, nil
}

func (s *Store) ListPlans(_ context.Context) ([]core.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		p.Config = p.Config.Clone()
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b core.Plan) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *Store) MarkPlanProjected(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return fmt.Errorf("plan %d: %w", id, ports.ErrNotFound)
	}
	p.LastProjectedAt = at
	s.plans[id] = p
	return nil
}

func (s *Store) CreateRun(_ context.Context, run core.ProjectionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	s.runs[run.ID] = run
	return nil
}

func (s *Store) GetRun(_ context.Context, id string) (core.ProjectionRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return core.ProjectionRun{}, fmt.Errorf("run %s: %w", id, ports.ErrNotFound)
	}
	return run, nil
}

func (s *Store) ListQueuedRuns(_ context.Context, before time.Time, limit int) ([]core.ProjectionRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.ProjectionRun
	for _, run := range s.runs {
		if run.Status == core.RunQueued && run.CreatedAt.Before(before) {
			out = append(out, run)
		}
	}
	slices.SortFunc(out, func(a, b core.ProjectionRun) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkRunRunning(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return false, fmt.Errorf("run %s: %w", id, ports.ErrNotFound)
	}
	if run.Status != core.RunQueued {
		return false, nil
	}
	run.Status = core.RunRunning
	run.StartedAt = at
	s.runs[id] = run
	return true, nil
}

func (s *Store) RequeueRun(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return false, fmt.Errorf("run %s: %w", id, ports.ErrNotFound)
	}
	if run.Status != core.RunRunning {
		return false, nil
	}
	run.Status = core.RunQueued
	run.StartedAt = time.Time{}
	s.runs[id] = run
	return true, nil
}

func (s *Store) RequeueStaleRuns(_ context.Context, startedBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, run := range s.runs {
		if run.Status == core.RunRunning && run.StartedAt.Before(startedBefore) {
			run.Status = core.RunQueued
			run.StartedAt = time.Time{}
			s.runs[id] = run
			n++
		}
	}
	return n, nil
}

func (s *Store) CompleteRun(_ context.Context, id string, result *core.ProjectionResult, at time.Time) error {
	return s.finish(id, at, func(run *core.ProjectionRun) {
		run.Status = core.RunDone
		run.Result = result
		run.Error = ""
	})
}

func (s *Store) FailRun(_ context.Context, id string, reason string, at time.Time) error {
	return s.finish(id, at, func(run *core.ProjectionRun) {
		run.Status = core.RunFailed
		run.Error = reason
	})
}

func (s *Store) finish(id string, at time.Time, apply func(*core.ProjectionRun)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("run %s: %w", id, ports.ErrNotFound)
	}
	apply(&run)
	run.FinishedAt = at
	s.runs[id] = run
	return nil
}
