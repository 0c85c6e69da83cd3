// Package analytics answers dashboard queries from precomputed DailyMetrics,
// recomputing from call records when a document is missing.
package analytics

import (
	"context"
	"log/slog"
	"time"

	"call-analytics/internal/calls"
	"call-analytics/internal/jobs"
	"call-analytics/internal/provider"
	"call-analytics/internal/rollup"
	"call-analytics/internal/telemetry"
	"call-analytics/internal/tenancy"
	"call-analytics/pkg/utils"

	"golang.org/x/sync/errgroup"
)

const (
	PathPrecomputed = "precomputed"
	PathRecomputed  = "recomputed"

	TrendDays   = 7
	RecentCalls = 10
)

// StatsSource provides provider-side totals for the real-time view.
type StatsSource interface {
	GetCallStatistics(ctx context.Context, start, end time.Time) (provider.CallStatistics, error)
}

type Engine struct {
	calls   calls.Repository
	store   rollup.Repository
	calc    *rollup.Calculator
	stats   StatsSource
	runs    jobs.Recorder
	metrics *telemetry.Metrics
	log     *slog.Logger
	clock   func() time.Time
}

type Options struct {
	Stats   StatsSource
	Runs    jobs.Recorder
	Metrics *telemetry.Metrics
	Logger  *slog.Logger
	Clock   func() time.Time
}

func NewEngine(callRepo calls.Repository, store rollup.Repository, calc *rollup.Calculator, opts Options) *Engine {
	e := &Engine{
		calls:   callRepo,
		store:   store,
		calc:    calc,
		stats:   opts.Stats,
		runs:    opts.Runs,
		metrics: opts.Metrics,
		log:     opts.Logger,
		clock:   opts.Clock,
	}
	if e.runs == nil {
		e.runs = jobs.NewMemoryRecorder()
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	return e
}

func (e *Engine) loc() *time.Location { return e.calc.Location() }

// DailyView returns the stored document for (day, scope) unchanged, or recomputes it with
// the same aggregation the rollup worker uses. A failed rollup read also falls back.
func (e *Engine) DailyView(ctx context.Context, day time.Time, scope tenancy.Scope) (rollup.DailyMetrics, error) {
	m, _, err := e.dailyView(ctx, day, scope)
	return m, err
}

func (e *Engine) dailyView(ctx context.Context, day time.Time, scope tenancy.Scope) (rollup.DailyMetrics, string, error) {
	key := utils.DateKey(day, e.loc())
	m, ok, err := e.store.Get(ctx, key, scope)
	if err != nil {
		e.log.Warn("daily metrics read failed; recomputing",
			slog.String("date", key), slog.String("client_id", scope.ClientID), slog.Any("err", err))
	}
	if err == nil && ok {
		e.metrics.RecordDailyViewPath(PathPrecomputed)
		return m, PathPrecomputed, nil
	}

	m, err = e.calc.Compute(ctx, day, scope)
	if err != nil {
		return rollup.DailyMetrics{}, "", err
	}
	e.metrics.RecordDailyViewPath(PathRecomputed)
	return m, PathRecomputed, nil
}

// WeeklyTrend resolves the seven days ending at endDate independently, oldest first.
func (e *Engine) WeeklyTrend(ctx context.Context, endDate time.Time, scope tenancy.Scope) ([]rollup.DailyMetrics, error) {
	end := utils.StartOfDay(endDate, e.loc())
	out := make([]rollup.DailyMetrics, TrendDays)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < TrendDays; i++ {
		day := end.AddDate(0, 0, i-(TrendDays-1))
		g.Go(func() error {
			m, err := e.DailyView(gctx, day, scope)
			if err != nil {
				return err
			}
			out[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
