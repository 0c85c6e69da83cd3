package calls

import (
	"context"
	"sort"
	"sync"
	"time"

	"call-analytics/internal/tenancy"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory CallRecordStore for tests and local runs.
// The mutex makes Upsert atomic per external id.
type MemoryRepo struct {
	mu    sync.RWMutex
	byExt map[string]CallRecord
	clock func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byExt: make(map[string]CallRecord), clock: time.Now}
}

func (r *MemoryRepo) Upsert(_ context.Context, rec CallRecord) (bool, error) {
	if err := validate(rec); err != nil {
		return false, err
	}
	now := r.clock().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byExt[rec.ExternalCallID]
	if !ok {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		rec.UpdatedAt = now
		r.byExt[rec.ExternalCallID] = rec
		return true, nil
	}

	merged := rec
	merged.ID = existing.ID
	merged.CreatedAt = existing.CreatedAt
	if merged.ClientID == "" {
		merged.ClientID = existing.ClientID
	}
	if merged.AssistantID == "" {
		merged.AssistantID = existing.AssistantID
	}
	if merged.PhoneNumber == "" {
		merged.PhoneNumber = existing.PhoneNumber
	}
	if merged.CaseType == "" {
		merged.CaseType = existing.CaseType
	}
	if merged.EstimatedValue == nil {
		merged.EstimatedValue = existing.EstimatedValue
	}
	merged.IsQualified, merged.QualificationSource = mergeQualification(existing, rec)
	merged.UpdatedAt = now
	r.byExt[rec.ExternalCallID] = merged
	return false, nil
}

func (r *MemoryRepo) GetByExternalID(_ context.Context, externalCallID string) (CallRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byExt[externalCallID]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepo) List(_ context.Context, f tenancy.QueryFilter, offset, limit int) ([]CallRecord, error) {
	all := r.matching(f)
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ExternalCallID > all[j].ExternalCallID
	})
	if offset >= len(all) {
		return []CallRecord{}, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

func (r *MemoryRepo) Count(_ context.Context, f tenancy.QueryFilter) (int, error) {
	return len(r.matching(f)), nil
}

func (r *MemoryRepo) ListForAggregation(_ context.Context, f tenancy.QueryFilter) ([]CallRecord, error) {
	return r.matching(f), nil
}

func (r *MemoryRepo) DistinctScopes(_ context.Context, from, to time.Time) ([]tenancy.Scope, error) {
	rng := tenancy.DateRange{From: from, To: to}

	r.mu.RLock()
	seen := make(map[tenancy.Scope]struct{})
	for _, rec := range r.byExt {
		if rec.ClientID == "" || !rng.Contains(rec.CreatedAt) {
			continue
		}
		seen[tenancy.Scope{ClientID: rec.ClientID, AssistantID: rec.AssistantID}] = struct{}{}
	}
	r.mu.RUnlock()

	out := make([]tenancy.Scope, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ClientID != out[j].ClientID {
			return out[i].ClientID < out[j].ClientID
		}
		return out[i].AssistantID < out[j].AssistantID
	})
	return out, nil
}

func (r *MemoryRepo) matching(f tenancy.QueryFilter) []CallRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CallRecord, 0, len(r.byExt))
	for _, rec := range r.byExt {
		if Matches(rec, f) {
			out = append(out, rec)
		}
	}
	return out
}
