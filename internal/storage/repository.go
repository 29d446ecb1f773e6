package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"patrimonio/internal/core"
	"patrimonio/internal/ports"

	_ "modernc.org/sqlite"
)

// Fixed width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteRepository implements the life event, plan and run stores.
type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ ports.LifeEventStore = (*SQLiteRepository)(nil)
	_ ports.PlanStore      = (*SQLiteRepository)(nil)
	_ ports.RunStore       = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks database connectivity for readiness probes.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) ListLifeEvents(ctx context.Context) ([]core.LifeEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, calendar_year, amount_cents, kind FROM life_events ORDER BY calendar_year, id`)
	if err != nil {
		return nil, fmt.Errorf("list life events: %w", err)
	}
	defer rows.Close()

	var events []core.LifeEvent
	for rows.Next() {
		var e core.LifeEvent
		var kind string
		if err := rows.Scan(&e.ID, &e.Name, &e.CalendarYear, &e.Amount.Cents, &kind); err != nil {
			return nil, fmt.Errorf("scan life event: %w", err)
		}
		e.Kind = core.LifeEventKind(kind)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate life events: %w", err)
	}
	return events, nil
}

func (r *SQLiteRepository) CreateLifeEvent(ctx context.Context, e core.LifeEvent) (core.LifeEvent, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO life_events (name, calendar_year, amount_cents, kind, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.Name, e.CalendarYear, e.Amount.Cents, string(e.Kind), formatTime(time.Now()))
	if err != nil {
		return core.LifeEvent{}, fmt.Errorf("create life event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.LifeEvent{}, fmt.Errorf("life event id: %w", err)
	}
	e.ID = id

	slog.InfoContext(ctx, "Life event saved to SQLite",
		"id", e.ID,
		"name", e.Name,
		"calendar_year", e.CalendarYear,
		"amount_cents", e.Amount.Cents,
		"kind", e.Kind)
	return e, nil
}

func (r *SQLiteRepository) DeleteLifeEvent(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM life_events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete life event %d: %w", id, err)
	}
	return expectOne(res, fmt.Sprintf("life event %d", id))
}

func (r *SQLiteRepository) SavePlan(ctx context.Context, p core.Plan) (core.Plan, error) {
	cfgJSON, err := json.Marshal(p.Config)
	if err != nil {
		return core.Plan{}, fmt.Errorf("encode plan config: %w", err)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	if p.ID == 0 {
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO plans (name, config_json, cadence, use_saved_events, created_at) VALUES (?, ?, ?, ?, ?)`,
			p.Name, string(cfgJSON), string(p.Cadence), p.UseSavedEvents, formatTime(p.CreatedAt))
		if err != nil {
			return core.Plan{}, fmt.Errorf("create plan: %w", err)
		}
		if p.ID, err = res.LastInsertId(); err != nil {
			return core.Plan{}, fmt.Errorf("plan id: %w", err)
		}
		return p, nil
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE plans SET name = ?, config_json = ?, cadence = ?, use_saved_events = ? WHERE id = ?`,
		p.Name, string(cfgJSON), string(p.Cadence), p.UseSavedEvents, p.ID)
	if err != nil {
		return core.Plan{}, fmt.Errorf("update plan %d: %w", p.ID, err)
	}
	if err := expectOne(res, fmt.Sprintf("plan %d", p.ID)); err != nil {
		return core.Plan{}, err
	}
	return p, nil
}

const planColumns = `id, name, config_json, cadence, use_saved_events, last_projected_at, created_at`

func (r *SQLiteRepository) GetPlan(ctx context.Context, id int64) (core.Plan, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = ?`, id)
	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Plan{}, fmt.Errorf("plan %d: %w", id, ports.ErrNotFound)
	}
	return p, err
}

func (r *SQLiteRepository) ListPlans(ctx context.Context) ([]core.Plan, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+planColumns+` FROM plans ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []core.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return plans, nil
}

func (r *SQLiteRepository) MarkPlanProjected(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE plans SET last_projected_at = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("mark plan %d projected: %w", id, err)
	}
	return expectOne(res, fmt.Sprintf("plan %d", id))
}

func (r *SQLiteRepository) CreateRun(ctx context.Context, run core.ProjectionRun) error {
	reqJSON, err := json.Marshal(run.Request)
	if err != nil {
		return fmt.Errorf("encode run request: %w", err)
	}
	var planID sql.NullInt64
	if run.PlanID != 0 {
		planID = sql.NullInt64{Int64: run.PlanID, Valid: true}
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO projection_runs (id, plan_id, status, request_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, planID, string(run.Status), string(reqJSON), formatTime(run.CreatedAt))
	if err != nil {
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}
	return nil
}

const runColumns = `id, plan_id, status, request_json, result_json, error, created_at, started_at, finished_at`

func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (core.ProjectionRun, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM projection_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ProjectionRun{}, fmt.Errorf("run %s: %w", id, ports.ErrNotFound)
	}
	return run, err
}

func (r *SQLiteRepository) ListQueuedRuns(ctx context.Context, before time.Time, limit int) ([]core.ProjectionRun, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM projection_runs WHERE status = ? AND created_at < ? ORDER BY created_at LIMIT ?`,
		string(core.RunQueued), formatTime(before), limit)
	if err != nil {
		return nil, fmt.Errorf("list queued runs: %w", err)
	}
	defer rows.Close()

	var runs []core.ProjectionRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queued runs: %w", err)
	}
	return runs, nil
}

func (r *SQLiteRepository) MarkRunRunning(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE projection_runs SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		string(core.RunRunning), formatTime(at), id, string(core.RunQueued))
	if err != nil {
		return false, fmt.Errorf("mark run %s running: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if _, err := r.GetRun(ctx, id); err != nil {
			return false, err
		}
	}
	return n == 1, nil
}

func (r *SQLiteRepository) RequeueRun(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE projection_runs SET status = ?, started_at = NULL WHERE id = ? AND status = ?`,
		string(core.RunQueued), id, string(core.RunRunning))
	if err != nil {
		return false, fmt.Errorf("requeue run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if _, err := r.GetRun(ctx, id); err != nil {
			return false, err
		}
	}
	return n == 1, nil
}

func (r *SQLiteRepository) RequeueStaleRuns(ctx context.Context, startedBefore time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE projection_runs SET status = ?, started_at = NULL WHERE status = ? AND started_at < ?`,
		string(core.RunQueued), string(core.RunRunning), formatTime(startedBefore))
	if err != nil {
		return 0, fmt.Errorf("requeue stale runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func (r *SQLiteRepository) CompleteRun(ctx context.Context, id string, result *core.ProjectionResult, at time.Time) error {
	resJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode run result: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE projection_runs SET status = ?, result_json = ?, error = '', finished_at = ? WHERE id = ?`,
		string(core.RunDone), string(resJSON), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("complete run %s: %w", id, err)
	}
	return expectOne(res, "run "+id)
}

func (r *SQLiteRepository) FailRun(ctx context.Context, id string, reason string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE projection_runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(core.RunFailed), reason, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("fail run %s: %w", id, err)
	}
	return expectOne(res, "run "+id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(s scanner) (core.Plan, error) {
	var (
		p         core.Plan
		cfgJSON   string
		cadence   string
		projected sql.NullString
		created   string
	)
	if err := s.Scan(&p.ID, &p.Name, &cfgJSON, &cadence, &p.UseSavedEvents, &projected, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Plan{}, err
		}
		return core.Plan{}, fmt.Errorf("scan plan: %w", err)
	}
	if err := json.Unmarshal([]byte(cfgJSON), &p.Config); err != nil {
		return core.Plan{}, fmt.Errorf("decode plan %d config: %w", p.ID, err)
	}
	p.Cadence = core.RefreshCadence(cadence)
	var err error
	if p.CreatedAt, err = parseTime(created); err != nil {
		return core.Plan{}, err
	}
	if p.LastProjectedAt, err = parseNullTime(projected); err != nil {
		return core.Plan{}, err
	}
	return p, nil
}

func scanRun(s scanner) (core.ProjectionRun, error) {
	var (
		run      core.ProjectionRun
		planID   sql.NullInt64
		status   string
		reqJSON  string
		resJSON  sql.NullString
		created  string
		started  sql.NullString
		finished sql.NullString
	)
	if err := s.Scan(&run.ID, &planID, &status, &reqJSON, &resJSON, &run.Error, &created, &started, &finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ProjectionRun{}, err
		}
		return core.ProjectionRun{}, fmt.Errorf("scan run: %w", err)
	}
	run.PlanID = planID.Int64
	run.Status = core.RunStatus(status)
	if err := json.Unmarshal([]byte(reqJSON), &run.Request); err != nil {
		return core.ProjectionRun{}, fmt.Errorf("decode run %s request: %w", run.ID, err)
	}
	if resJSON.Valid && resJSON.String != "" {
		run.Result = new(core.ProjectionResult)
		if err := json.Unmarshal([]byte(resJSON.String), run.Result); err != nil {
			return core.ProjectionRun{}, fmt.Errorf("decode run %s result: %w", run.ID, err)
		}
	}
	var err error
	if run.CreatedAt, err = parseTime(created); err != nil {
		return core.ProjectionRun{}, err
	}
	if run.StartedAt, err = parseNullTime(started); err != nil {
		return core.ProjectionRun{}, err
	}
	if run.FinishedAt, err = parseNullTime(finished); err != nil {
		return core.ProjectionRun{}, err
	}
	return run, nil
}

func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ports.ErrNotFound)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return parseTime(s.String)
}
