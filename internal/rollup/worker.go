package rollup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"call-analytics/internal/apperr"
	"call-analytics/internal/calls"
	"call-analytics/internal/jobs"
	"call-analytics/internal/telemetry"
	"call-analytics/internal/tenancy"
	"call-analytics/pkg/utils"
)

const (
	JobName           = "metrics_rollup"
	DefaultWindowDays = 8
)

// Result summarizes one rollup run.
// DaysProcessed counts dates whose documents were all written.
type Result struct {
	DaysProcessed int      `json:"daysProcessed"`
	Documents     int      `json:"documents"`
	Errors        []string `json:"errors,omitempty"`
}

type Worker struct {
	calc     *Calculator
	calls    calls.Repository
	store    Repository
	guard    *jobs.Guard
	recorder jobs.Recorder
	metrics  *telemetry.Metrics
	log      *slog.Logger
	clock    func() time.Time
}

type Options struct {
	Guard    *jobs.Guard
	Recorder jobs.Recorder
	Metrics  *telemetry.Metrics
	Logger   *slog.Logger
	Clock    func() time.Time
}

func NewWorker(calc *Calculator, callRepo calls.Repository, store Repository, opts Options) *Worker {
	w := &Worker{
		calc:     calc,
		calls:    callRepo,
		store:    store,
		guard:    opts.Guard,
		recorder: opts.Recorder,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		clock:    opts.Clock,
	}
	if w.guard == nil {
		w.guard = jobs.NewGuard(JobName, nil)
	}
	if w.recorder == nil {
		w.recorder = jobs.NewMemoryRecorder()
	}
	if w.log == nil {
		w.log = slog.Default()
	}
	if w.clock == nil {
		w.clock = time.Now
	}
	return w
}

// Rollup recomputes the last windowDays calendar days (today included) for one scope.
// A nil scope means the global, unscoped view.
func (w *Worker) Rollup(ctx context.Context, windowDays int, scope *tenancy.Scope) (Result, error) {
	s := tenancy.Scope{}
	if scope != nil {
		s = *scope
	}
	return w.guarded(ctx, func(ctx context.Context) (Result, error) {
		return w.process(ctx, w.window(windowDays), []tenancy.Scope{s}), nil
	})
}

// RollupAll recomputes the window for the global scope and for every client and
// (client, assistant) scope that has calls in the window or a stored document
// in it. Stored scopes are included so a tenant whose calls moved away is
// rewritten with zeroed documents instead of keeping stale ones.
func (w *Worker) RollupAll(ctx context.Context, windowDays int) (Result, error) {
	return w.guarded(ctx, func(ctx context.Context) (Result, error) {
		days := w.window(windowDays)
		from := days[0]
		last := days[len(days)-1]

		pairs, err := w.calls.DistinctScopes(ctx, from, last.AddDate(0, 0, 1))
		if err != nil {
			return Result{}, apperr.Store("list scopes for rollup", err)
		}
		stored, err := w.store.Scopes(ctx, from.Format(utils.DateLayout), last.Format(utils.DateLayout))
		if err != nil {
			return Result{}, apperr.Store("list stored rollup scopes", err)
		}
		return w.process(ctx, days, expandScopes(append(pairs, stored...))), nil
	})
}

func (w *Worker) guarded(ctx context.Context, fn func(context.Context) (Result, error)) (Result, error) {
	var res Result
	started := w.clock()
	err := w.guard.Run(ctx, func(ctx context.Context) error {
		var err error
		res, err = fn(ctx)

		info := jobs.RunInfo{
			Job:        JobName,
			StartedAt:  started,
			FinishedAt: w.clock(),
			Success:    err == nil && len(res.Errors) == 0,
			Counts:     map[string]int{"days": res.DaysProcessed, "documents": res.Documents, "errors": len(res.Errors)},
		}
		if err != nil {
			info.Error = apperr.PublicMessage(err)
		}
		w.metrics.ObserveJob(JobName, info.FinishedAt.Sub(started))
		if rerr := w.recorder.Record(context.WithoutCancel(ctx), info); rerr != nil {
			w.log.Warn("record rollup run failed", slog.Any("err", rerr))
		}
		return err
	})
	if errors.Is(err, jobs.ErrAlreadyRunning) {
		return Result{}, apperr.Wrap(apperr.KindConflict, "metrics rollup already running", err)
	}
	return res, err
}

// window returns midnights for [today-windowDays+1, today], oldest first.
func (w *Worker) window(windowDays int) []time.Time {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	today := utils.StartOfDay(w.clock(), w.calc.Location())
	days := make([]time.Time, 0, windowDays)
	for i := windowDays - 1; i >= 0; i-- {
		days = append(days, today.AddDate(0, 0, -i))
	}
	return days
}

func (w *Worker) process(ctx context.Context, days []time.Time, scopes []tenancy.Scope) Result {
	var res Result
	for _, day := range days {
		ok := true
		for _, scope := range scopes {
			if err := w.rollupOne(ctx, day, scope); err != nil {
				ok = false
				res.Errors = append(res.Errors, fmt.Sprintf("%s client=%q assistant=%q: %s",
					day.Format(utils.DateLayout), scope.ClientID, scope.AssistantID, apperr.PublicMessage(err)))
				w.metrics.RecordRollupDocument(false)
				w.log.Warn("rollup failed for date",
					slog.String("date", day.Format(utils.DateLayout)),
					slog.String("client_id", scope.ClientID),
					slog.String("assistant_id", scope.AssistantID),
					slog.Any("err", err),
				)
				continue
			}
			res.Documents++
			w.metrics.RecordRollupDocument(true)
		}
		if ok {
			res.DaysProcessed++
		}
	}
	w.log.Info("rollup finished",
		slog.Int("days", len(days)),
		slog.Int("scopes", len(scopes)),
		slog.Int("documents", res.Documents),
		slog.Int("errors", len(res.Errors)),
	)
	return res
}

func (w *Worker) rollupOne(ctx context.Context, day time.Time, scope tenancy.Scope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := w.calc.Compute(ctx, day, scope)
	if err != nil {
		return apperr.Store("compute daily metrics", err)
	}
	if err := w.store.Upsert(ctx, m); err != nil {
		return apperr.Store("store daily metrics", err)
	}
	return nil
}

// expandScopes returns the global scope, each client, and each (client, assistant) pair once.
func expandScopes(pairs []tenancy.Scope) []tenancy.Scope {
	out := []tenancy.Scope{{}}
	seen := map[tenancy.Scope]bool{{}: true}
	add := func(s tenancy.Scope) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, p := range pairs {
		add(tenancy.Scope{ClientID: p.ClientID})
		if p.AssistantID != "" {
			add(p)
		}
	}
	return out
}
