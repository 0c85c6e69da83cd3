package analytics

import (
	"context"

	"call-analytics/internal/apperr"
	"call-analytics/internal/calls"
	"call-analytics/internal/tenancy"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

type Pagination struct {
	Page    int  `json:"page"`
	PerPage int  `json:"perPage"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"hasNext"`
	HasPrev bool `json:"hasPrev"`
}

type CallPage struct {
	Calls      []calls.CallRecord `json:"calls"`
	Pagination Pagination         `json:"pagination"`
}

// ClampPerPage bounds perPage to [1, MaxPerPage].
func ClampPerPage(perPage int) int {
	if perPage < 1 {
		return 1
	}
	if perPage > MaxPerPage {
		return MaxPerPage
	}
	return perPage
}

func NewPagination(page, perPage, total int) Pagination {
	pages := 0
	if total > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return Pagination{
		Page:    page,
		PerPage: perPage,
		Total:   total,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1,
	}
}

// ListCalls returns one page of matching calls, newest first.
func (e *Engine) ListCalls(ctx context.Context, f tenancy.QueryFilter, page, perPage int) (CallPage, error) {
	if page < 1 {
		return CallPage{}, apperr.Validation("page must be >= 1")
	}
	perPage = ClampPerPage(perPage)

	total, err := e.calls.Count(ctx, f)
	if err != nil {
		return CallPage{}, apperr.Store("count calls", err)
	}
	rows, err := e.calls.List(ctx, f, (page-1)*perPage, perPage)
	if err != nil {
		return CallPage{}, apperr.Store("list calls", err)
	}
	if rows == nil {
		rows = []calls.CallRecord{}
	}
	return CallPage{Calls: rows, Pagination: NewPagination(page, perPage, total)}, nil
}

func (e *Engine) recentCalls(ctx context.Context, scope tenancy.Scope) ([]calls.CallRecord, error) {
	rows, err := e.calls.List(ctx, tenancy.QueryFilter{Scope: scope}, 0, RecentCalls)
	if err != nil {
		return nil, apperr.Store("list recent calls", err)
	}
	if rows == nil {
		rows = []calls.CallRecord{}
	}
	return rows, nil
}
