package analytics

import (
	"context"
	"log/slog"
	"time"

	"call-analytics/internal/calls"
	"call-analytics/internal/callsync"
	"call-analytics/internal/jobs"
	"call-analytics/internal/provider"
	"call-analytics/internal/rollup"
	"call-analytics/internal/tenancy"
	"call-analytics/pkg/utils"
)

type HourlyPoint struct {
	Hour  int `json:"hour"`
	Calls int `json:"calls"`
}

type DashboardMetrics struct {
	Today      rollup.DailyMetrics   `json:"today"`
	HourlyData []HourlyPoint         `json:"hourly_data"`
	WeeklyData []rollup.DailyMetrics `json:"weekly_data"`
}

type Dashboard struct {
	Metrics     DashboardMetrics   `json:"metrics"`
	RecentCalls []calls.CallRecord `json:"recent_calls"`
}

// Dashboard composes today's metrics, a 24-slot hourly series, the weekly trend and recent calls.
func (e *Engine) Dashboard(ctx context.Context, scope tenancy.Scope) (Dashboard, error) {
	now := e.clock()

	today, err := e.DailyView(ctx, now, scope)
	if err != nil {
		return Dashboard{}, err
	}
	weekly, err := e.WeeklyTrend(ctx, now, scope)
	if err != nil {
		return Dashboard{}, err
	}
	recent, err := e.recentCalls(ctx, scope)
	if err != nil {
		return Dashboard{}, err
	}

	return Dashboard{
		Metrics: DashboardMetrics{
			Today:      today,
			HourlyData: HourlySeries(today),
			WeeklyData: weekly,
		},
		RecentCalls: recent,
	}, nil
}

// HourlySeries expands the sparse breakdown into 24 points.
func HourlySeries(m rollup.DailyMetrics) []HourlyPoint {
	out := make([]HourlyPoint, 24)
	for h := 0; h < 24; h++ {
		out[h] = HourlyPoint{Hour: h, Calls: m.HourlyBreakdown[h]}
	}
	return out
}

type SyncInfo struct {
	LastCallSync *jobs.RunInfo `json:"lastCallSync,omitempty"`
	LastRollup   *jobs.RunInfo `json:"lastRollup,omitempty"`
}

type RealTime struct {
	CurrentMetrics rollup.DailyMetrics      `json:"currentMetrics"`
	RecentCalls    []calls.CallRecord       `json:"recentCalls"`
	SyncInfo       SyncInfo                 `json:"syncInfo"`
	ProviderStats  *provider.CallStatistics `json:"providerStats,omitempty"`
	Timestamp      time.Time                `json:"timestamp"`
}

// RealTime always recomputes today from call records so it reflects the latest sync.
// Provider statistics are account-wide and therefore only attached to the global scope;
// they are best effort and omitted when the provider fails.
func (e *Engine) RealTime(ctx context.Context, scope tenancy.Scope) (RealTime, error) {
	now := e.clock()

	current, err := e.calc.Compute(ctx, now, scope)
	if err != nil {
		return RealTime{}, err
	}
	e.metrics.RecordDailyViewPath(PathRecomputed)

	recent, err := e.recentCalls(ctx, scope)
	if err != nil {
		return RealTime{}, err
	}

	out := RealTime{
		CurrentMetrics: current,
		RecentCalls:    recent,
		SyncInfo:       e.syncInfo(ctx),
		Timestamp:      now.UTC(),
	}

	if e.stats != nil && scope.IsGlobal() {
		from, to := utils.DayBounds(now, e.loc())
		stats, err := e.stats.GetCallStatistics(ctx, from, to)
		if err != nil {
			e.log.Warn("provider statistics unavailable", slog.Any("err", err))
		} else {
			out.ProviderStats = &stats
		}
	}
	return out, nil
}

func (e *Engine) syncInfo(ctx context.Context) SyncInfo {
	var info SyncInfo
	if r, ok, err := e.runs.Last(ctx, callsync.JobName); err != nil {
		e.log.Warn("read last call sync failed", slog.Any("err", err))
	} else if ok {
		info.LastCallSync = &r
	}
	if r, ok, err := e.runs.Last(ctx, rollup.JobName); err != nil {
		e.log.Warn("read last rollup failed", slog.Any("err", err))
	} else if ok {
		info.LastRollup = &r
	}
	return info
}
