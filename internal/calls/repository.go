package calls

import (
	"context"
	"errors"
	"time"

	"call-analytics/internal/tenancy"
)

var (
	ErrNotFound      = errors.New("calls: not found")
	ErrInvalidRecord = errors.New("calls: invalid record")
)

// Repository is the CallRecordStore contract.
//
// Upsert is keyed by ExternalCallID and must be atomic: replaying the same event
// from two writers yields one record. On update, ID and CreatedAt are preserved and
// an analysis qualification is never downgraded to a heuristic one.
type Repository interface {
	Upsert(ctx context.Context, rec CallRecord) (created bool, err error)
	GetByExternalID(ctx context.Context, externalCallID string) (CallRecord, error)

	// List returns matches newest first (CreatedAt DESC, ExternalCallID DESC).
	List(ctx context.Context, f tenancy.QueryFilter, offset, limit int) ([]CallRecord, error)
	Count(ctx context.Context, f tenancy.QueryFilter) (int, error)

	// ListForAggregation returns every match with no paging.
	ListForAggregation(ctx context.Context, f tenancy.QueryFilter) ([]CallRecord, error)

	// DistinctScopes lists (client, assistant) pairs with calls created in [from, to).
	// Records without a client are omitted.
	DistinctScopes(ctx context.Context, from, to time.Time) ([]tenancy.Scope, error)
}

func validate(rec CallRecord) error {
	if rec.ExternalCallID == "" {
		return errors.Join(ErrInvalidRecord, errors.New("external call id is required"))
	}
	if !rec.Status.Valid() {
		return errors.Join(ErrInvalidRecord, errors.New("unknown status "+string(rec.Status)))
	}
	if rec.DurationSeconds < 0 || rec.Cost < 0 {
		return errors.Join(ErrInvalidRecord, errors.New("duration and cost must be >= 0"))
	}
	if rec.CreatedAt.IsZero() {
		return errors.Join(ErrInvalidRecord, errors.New("created_at is required"))
	}
	return nil
}

// mergeQualification keeps an existing analysis verdict when the incoming one is heuristic.
func mergeQualification(existing, incoming CallRecord) (bool, QualificationSource) {
	if existing.QualificationSource == QualificationAnalysis && incoming.QualificationSource != QualificationAnalysis {
		return existing.IsQualified, QualificationAnalysis
	}
	return incoming.IsQualified, incoming.QualificationSource
}
