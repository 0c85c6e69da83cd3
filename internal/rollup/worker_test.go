package rollup

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"call-analytics/internal/apperr"
	"call-analytics/internal/calls"
	"call-analytics/internal/jobs"
	"call-analytics/internal/tenancy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 8, 15, 30, 0, 0, time.UTC)

type fixture struct {
	calls  *calls.MemoryRepo
	store  *MemoryRepo
	calc   *Calculator
	worker *Worker
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	callRepo := calls.NewMemoryRepo()
	store := NewMemoryRepo()
	calc := NewCalculator(callRepo, 500, time.UTC)
	w := NewWorker(calc, callRepo, store, Options{Clock: func() time.Time { return now }})
	return fixture{calls: callRepo, store: store, calc: calc, worker: w}
}

func (f fixture) add(t *testing.T, ext, client, assistant string, created time.Time, duration float64) {
	t.Helper()
	_, err := f.calls.Upsert(context.Background(), calls.CallRecord{
		ExternalCallID:      ext,
		ClientID:            client,
		AssistantID:         assistant,
		Status:              calls.StatusCompleted,
		CreatedAt:           created,
		DurationSeconds:     duration,
		IsQualified:         calls.QualifiesByDuration(duration),
		QualificationSource: calls.QualificationHeuristic,
	})
	require.NoError(t, err)
}

func TestRollup_WindowCoversEightDays(t *testing.T) {
	f := newFixture(t)
	f.add(t, "old", "c1", "", now.AddDate(0, 0, -7), 90)
	f.add(t, "too-old", "c1", "", now.AddDate(0, 0, -8), 90)

	res, err := f.worker.Rollup(context.Background(), 8, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, res.DaysProcessed)
	assert.Equal(t, 8, f.store.Len())

	m, ok, _ := f.store.Get(context.Background(), "2024-06-01", tenancy.Scope{})
	require.True(t, ok)
	assert.Equal(t, 1, m.TotalCalls)

	_, ok, _ = f.store.Get(context.Background(), "2024-05-31", tenancy.Scope{})
	assert.False(t, ok)
}

func TestRollup_IdempotentAndEventuallyConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := tenancy.Scope{ClientID: "c1"}
	f.add(t, "a", "c1", "", now.Add(-time.Hour), 30)

	_, err := f.worker.Rollup(ctx, 1, &scope)
	require.NoError(t, err)
	first, _, _ := f.store.Get(ctx, "2024-06-08", scope)
	firstJSON, _ := json.Marshal(first)

	_, err = f.worker.Rollup(ctx, 1, &scope)
	require.NoError(t, err)
	second, _, _ := f.store.Get(ctx, "2024-06-08", scope)
	secondJSON, _ := json.Marshal(second)
	assert.Equal(t, string(firstJSON), string(secondJSON))

	// late-arriving correction changes the day on the next run
	f.add(t, "a", "c1", "", now.Add(-time.Hour), 200)
	_, err = f.worker.Rollup(ctx, 1, &scope)
	require.NoError(t, err)
	third, _, _ := f.store.Get(ctx, "2024-06-08", scope)
	assert.Equal(t, 1, third.QualifiedCalls)
	assert.Equal(t, 0, first.QualifiedCalls)
}

func TestRollup_PathEquivalenceWithCalculator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := tenancy.Scope{ClientID: "c1", AssistantID: "a1"}
	f.add(t, "1", "c1", "a1", now.Add(-2*time.Hour), 45)
	f.add(t, "2", "c1", "a1", now.Add(-3*time.Hour), 75)
	f.add(t, "3", "c1", "a2", now.Add(-3*time.Hour), 75)

	_, err := f.worker.Rollup(ctx, 1, &scope)
	require.NoError(t, err)
	stored, ok, _ := f.store.Get(ctx, "2024-06-08", scope)
	require.True(t, ok)

	recomputed, err := f.calc.Compute(ctx, now, scope)
	require.NoError(t, err)
	assert.Equal(t, stored, recomputed)
	assert.Equal(t, 2, stored.TotalCalls)
}

func TestRollupAll_FansOutToObservedScopes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "1", "c1", "a1", now.Add(-time.Hour), 10)
	f.add(t, "2", "c2", "", now.AddDate(0, 0, -2), 10)
	f.add(t, "3", "", "", now.Add(-time.Hour), 10)

	res, err := f.worker.RollupAll(ctx, 3)
	require.NoError(t, err)
	// scopes: global, c1, c1/a1, c2 across 3 days
	assert.Equal(t, 12, res.Documents)
	assert.Equal(t, 3, res.DaysProcessed)

	global, ok, _ := f.store.Get(ctx, "2024-06-08", tenancy.Scope{})
	require.True(t, ok)
	assert.Equal(t, 2, global.TotalCalls)

	pair, ok, _ := f.store.Get(ctx, "2024-06-08", tenancy.Scope{ClientID: "c1", AssistantID: "a1"})
	require.True(t, ok)
	assert.Equal(t, 1, pair.TotalCalls)
}

func TestRollupAll_ZeroesScopeThatLostItsCalls(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRepo()
	clock := Options{Clock: func() time.Time { return now }}

	before := calls.NewMemoryRepo()
	_, err := before.Upsert(ctx, calls.CallRecord{
		ExternalCallID: "x", ClientID: "cA", AssistantID: "a1", Status: calls.StatusCompleted,
		CreatedAt: now.Add(-time.Hour), DurationSeconds: 90, IsQualified: true,
	})
	require.NoError(t, err)
	_, err = NewWorker(NewCalculator(before, 500, time.UTC), before, store, clock).RollupAll(ctx, 2)
	require.NoError(t, err)
	stale, ok, _ := store.Get(ctx, "2024-06-08", tenancy.Scope{ClientID: "cA"})
	require.True(t, ok)
	require.Equal(t, 1, stale.TotalCalls)

	// the assistant moved to cB, so cA has no calls left in the window
	after := calls.NewMemoryRepo()
	_, err = after.Upsert(ctx, calls.CallRecord{
		ExternalCallID: "x", ClientID: "cB", AssistantID: "a1", Status: calls.StatusCompleted,
		CreatedAt: now.Add(-time.Hour), DurationSeconds: 90, IsQualified: true,
	})
	require.NoError(t, err)
	calc := NewCalculator(after, 500, time.UTC)
	_, err = NewWorker(calc, after, store, clock).RollupAll(ctx, 2)
	require.NoError(t, err)

	for _, scope := range []tenancy.Scope{{ClientID: "cA"}, {ClientID: "cA", AssistantID: "a1"}} {
		stored, ok, _ := store.Get(ctx, "2024-06-08", scope)
		require.True(t, ok)
		assert.Equal(t, 0, stored.TotalCalls, "scope %+v", scope)
		recomputed, err := calc.Compute(ctx, now, scope)
		require.NoError(t, err)
		assert.Equal(t, recomputed, stored)
	}
	moved, ok, _ := store.Get(ctx, "2024-06-08", tenancy.Scope{ClientID: "cB"})
	require.True(t, ok)
	assert.Equal(t, 1, moved.TotalCalls)
}

func TestMemoryRepo_ScopesWithinRange(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRepo()
	require.NoError(t, store.Upsert(ctx, DailyMetrics{Date: "2024-06-01", ClientID: "c1"}))
	require.NoError(t, store.Upsert(ctx, DailyMetrics{Date: "2024-06-02", ClientID: "c1", AssistantID: "a1"}))
	require.NoError(t, store.Upsert(ctx, DailyMetrics{Date: "2024-06-03", ClientID: "c1"}))
	require.NoError(t, store.Upsert(ctx, DailyMetrics{Date: "2024-05-20", ClientID: "c9"}))

	got, err := store.Scopes(ctx, "2024-06-01", "2024-06-03")
	require.NoError(t, err)
	assert.Equal(t, []tenancy.Scope{{ClientID: "c1"}, {ClientID: "c1", AssistantID: "a1"}}, got)
}

type flakyCalls struct {
	*calls.MemoryRepo
	failDay time.Time
}

func (f flakyCalls) ListForAggregation(ctx context.Context, q tenancy.QueryFilter) ([]calls.CallRecord, error) {
	if q.Range != nil && q.Range.From.Equal(f.failDay) {
		return nil, errors.New("replica lag")
	}
	return f.MemoryRepo.ListForAggregation(ctx, q)
}

func TestRollup_FailedDateIsSkipped(t *testing.T) {
	callRepo := flakyCalls{MemoryRepo: calls.NewMemoryRepo(), failDay: time.Date(2024, 6, 6, 0, 0, 0, 0, time.UTC)}
	store := NewMemoryRepo()
	recorder := jobs.NewMemoryRecorder()
	w := NewWorker(NewCalculator(callRepo, 500, time.UTC), callRepo, store, Options{
		Recorder: recorder,
		Clock:    func() time.Time { return now },
	})

	res, err := w.Rollup(context.Background(), 8, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, res.DaysProcessed)
	assert.Equal(t, []string{`2024-06-06 client="" assistant="": internal error`}, res.Errors)
	assert.Equal(t, 7, store.Len())

	info, ok, _ := recorder.Last(context.Background(), JobName)
	require.True(t, ok)
	assert.False(t, info.Success)
}

func TestRollup_OverlapConflicts(t *testing.T) {
	f := newFixture(t)
	guard := jobs.NewGuard(JobName, nil)
	w := NewWorker(f.calc, f.calls, f.store, Options{Guard: guard, Clock: func() time.Time { return now }})

	err := guard.Run(context.Background(), func(ctx context.Context) error {
		_, err := w.RollupAll(ctx, 8)
		return err
	})
	assert.Equal(t, http.StatusConflict, apperr.HTTPStatus(err))
}

func TestExpandScopes(t *testing.T) {
	got := expandScopes([]tenancy.Scope{
		{ClientID: "c1", AssistantID: "a1"},
		{ClientID: "c1", AssistantID: "a2"},
		{ClientID: "c2"},
	})
	assert.Equal(t, []tenancy.Scope{
		{},
		{ClientID: "c1"},
		{ClientID: "c1", AssistantID: "a1"},
		{ClientID: "c1", AssistantID: "a2"},
		{ClientID: "c2"},
	}, got)
}
