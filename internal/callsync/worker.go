// Package callsync pulls recent calls from the provider into the call record store.
package callsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"call-analytics/internal/apperr"
	"call-analytics/internal/calls"
	"call-analytics/internal/jobs"
	"call-analytics/internal/provider"
	"call-analytics/internal/telemetry"
)

const JobName = "call_sync"

// Source lists recent provider calls, newest first.
type Source interface {
	ListCalls(ctx context.Context, limit int) ([]provider.CallEvent, error)
}

// OwnerLookup resolves the client owning an assistant.
type OwnerLookup interface {
	AssistantOwner(ctx context.Context, assistantID string) (clientID string, found bool, err error)
}

// Result summarizes one sync run.
type Result struct {
	Success bool     `json:"success"`
	Created int      `json:"newCalls"`
	Updated int      `json:"updatedCalls"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

type Worker struct {
	src      Source
	repo     calls.Repository
	owners   OwnerLookup
	guard    *jobs.Guard
	recorder jobs.Recorder
	metrics  *telemetry.Metrics
	region   string
	log      *slog.Logger
	clock    func() time.Time
}

type Options struct {
	Guard         *jobs.Guard
	Recorder      jobs.Recorder
	Metrics       *telemetry.Metrics
	DefaultRegion string
	Logger        *slog.Logger
}

func NewWorker(src Source, repo calls.Repository, owners OwnerLookup, opts Options) *Worker {
	w := &Worker{
		src:      src,
		repo:     repo,
		owners:   owners,
		guard:    opts.Guard,
		recorder: opts.Recorder,
		metrics:  opts.Metrics,
		region:   opts.DefaultRegion,
		log:      opts.Logger,
		clock:    time.Now,
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
	return w
}

// Sync fetches up to limit recent calls and upserts each by external id.
// Per-record failures are tallied; an unreachable provider aborts the run with Success=false.
func (w *Worker) Sync(ctx context.Context, limit int) (Result, error) {
	var res Result
	err := w.guard.Run(ctx, func(ctx context.Context) error {
		var err error
		res, err = w.run(ctx, limit)
		return err
	})
	if errors.Is(err, jobs.ErrAlreadyRunning) {
		w.metrics.RecordSyncRun("skipped")
		return Result{}, apperr.Wrap(apperr.KindConflict, "call sync already running", err)
	}
	return res, err
}

func (w *Worker) run(ctx context.Context, limit int) (Result, error) {
	started := w.clock()
	info := jobs.RunInfo{Job: JobName, StartedAt: started}
	defer func() {
		info.FinishedAt = w.clock()
		w.metrics.ObserveJob(JobName, info.FinishedAt.Sub(started))
		if err := w.recorder.Record(context.WithoutCancel(ctx), info); err != nil {
			w.log.Warn("record sync run failed", slog.Any("err", err))
		}
	}()

	events, err := w.src.ListCalls(ctx, limit)
	if err != nil {
		info.Error = apperr.PublicMessage(err)
		w.metrics.RecordSyncRun("provider_error")
		w.log.Error("call sync aborted: provider unavailable", slog.Any("err", err))
		return Result{Success: false}, err
	}

	res := Result{Success: true}
	for _, ev := range events {
		created, err := w.ingest(ctx, ev)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", ev.ID, apperr.PublicMessage(err)))
			w.log.Warn("call ingest failed", slog.String("external_call_id", ev.ID), slog.Any("err", err))
			continue
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}

	info.Success = true
	info.Counts = map[string]int{"fetched": len(events), "created": res.Created, "updated": res.Updated, "failed": res.Failed}
	w.metrics.RecordSyncRun("success")
	w.metrics.RecordSyncRecords(res.Created, res.Updated, res.Failed)
	w.log.Info("call sync finished",
		slog.Int("fetched", len(events)),
		slog.Int("created", res.Created),
		slog.Int("updated", res.Updated),
		slog.Int("failed", res.Failed),
	)
	return res, nil
}

func (w *Worker) ingest(ctx context.Context, ev provider.CallEvent) (bool, error) {
	rec, err := w.toRecord(ctx, ev)
	if err != nil {
		return false, err
	}
	created, err := w.repo.Upsert(ctx, rec)
	if errors.Is(err, calls.ErrInvalidRecord) {
		return false, apperr.Wrap(apperr.KindValidation, "invalid call record", err)
	}
	return created, err
}

func (w *Worker) toRecord(ctx context.Context, ev provider.CallEvent) (calls.CallRecord, error) {
	if ev.DecodeErr != nil {
		return calls.CallRecord{}, apperr.Wrap(apperr.KindValidation, "malformed call event", ev.DecodeErr)
	}
	if ev.ID == "" {
		return calls.CallRecord{}, apperr.Validation("call event has no id")
	}

	status, known := calls.MapProviderStatus(ev.Status)
	if !known {
		w.metrics.RecordUnknownStatus()
		w.log.Warn("unknown provider call status; stored as failed",
			slog.String("external_call_id", ev.ID), slog.String("status", ev.Status))
	}

	rec := calls.CallRecord{
		ExternalCallID:      ev.ID,
		AssistantID:         ev.AssistantID,
		PhoneNumber:         calls.NormalizePhone(ev.From, w.region),
		Status:              status,
		ProviderStatus:      ev.Status,
		CreatedAt:           ev.CreatedAt,
		StartedAt:           ev.StartedAt,
		EndedAt:             ev.EndedAt,
		DurationSeconds:     ev.DurationSeconds,
		Cost:                ev.Cost,
		Transcript:          ev.Transcript,
		Summary:             ev.Summary,
		IsQualified:         calls.QualifiesByDuration(ev.DurationSeconds),
		QualificationSource: calls.QualificationHeuristic,
		RawPayload:          ev.Raw,
	}

	if a := ev.Analysis; a != nil {
		if a.Qualified != nil {
			rec.IsQualified = *a.Qualified
			rec.QualificationSource = calls.QualificationAnalysis
		}
		rec.CaseType = a.CaseType
		rec.EstimatedValue = a.EstimatedValue
		if rec.Summary == "" {
			rec.Summary = a.Summary
		}
	}

	if ev.AssistantID != "" && w.owners != nil {
		owner, _, err := w.owners.AssistantOwner(ctx, ev.AssistantID)
		if err != nil {
			return calls.CallRecord{}, fmt.Errorf("resolve assistant owner: %w", err)
		}
		rec.ClientID = owner
	}
	return rec, nil
}
