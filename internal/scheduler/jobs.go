package scheduler

import (
	"context"
	"time"

	"call-analytics/internal/assistants"
	"call-analytics/internal/callsync"
	"call-analytics/internal/config"
	"call-analytics/internal/rollup"
)

const (
	callSyncTimeout   = 2 * time.Minute
	rollupTimeout     = 10 * time.Minute
	assistantsTimeout = time.Minute
)

type CallSyncer interface {
	Sync(ctx context.Context, limit int) (callsync.Result, error)
}

type RollupRunner interface {
	RollupAll(ctx context.Context, windowDays int) (rollup.Result, error)
}

type AssistantSyncer interface {
	SyncAll(ctx context.Context) (assistants.SyncResult, error)
}

type Deps struct {
	Calls      CallSyncer
	Rollup     RollupRunner
	Assistants AssistantSyncer
}

// StandardJobs returns the call sync, rollup fan-out and assistant resync jobs.
// Jobs whose dependency is nil are left out.
func StandardJobs(cfg config.SyncConfig, d Deps) []Job {
	var out []Job
	if d.Calls != nil {
		out = append(out, Job{
			Name:    callsync.JobName,
			Spec:    cfg.CallsCron,
			Timeout: callSyncTimeout,
			Run: func(ctx context.Context) error {
				_, err := d.Calls.Sync(ctx, cfg.CallLimit)
				return err
			},
		})
	}
	if d.Rollup != nil {
		out = append(out, Job{
			Name:    rollup.JobName,
			Spec:    cfg.RollupCron,
			Timeout: rollupTimeout,
			Run: func(ctx context.Context) error {
				_, err := d.Rollup.RollupAll(ctx, cfg.RollupWindowDays)
				return err
			},
		})
	}
	if d.Assistants != nil {
		out = append(out, Job{
			Name:    "assistant_sync",
			Spec:    cfg.AssistantsCron,
			Timeout: assistantsTimeout,
			Run: func(ctx context.Context) error {
				_, err := d.Assistants.SyncAll(ctx)
				return err
			},
		})
	}
	return out
}
