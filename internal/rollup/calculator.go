package rollup

import (
	"context"
	"time"

	"call-analytics/internal/apperr"
	"call-analytics/internal/calls"
	"call-analytics/internal/tenancy"
	"call-analytics/pkg/utils"
)

// Calculator loads a day of records and aggregates them.
// The rollup worker and the analytics fallback both go through Compute,
// so precomputed and recomputed metrics agree for the same records.
type Calculator struct {
	calls     calls.Repository
	leadValue float64
	loc       *time.Location
}

func NewCalculator(repo calls.Repository, leadValue float64, loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.Local
	}
	return &Calculator{calls: repo, leadValue: leadValue, loc: loc}
}

func (c *Calculator) Location() *time.Location { return c.loc }

// Compute aggregates the calendar day containing day for scope.
func (c *Calculator) Compute(ctx context.Context, day time.Time, scope tenancy.Scope) (DailyMetrics, error) {
	from, to := utils.DayBounds(day, c.loc)
	records, err := c.calls.ListForAggregation(ctx, tenancy.ForDay(scope, from, to))
	if err != nil {
		return DailyMetrics{}, apperr.Store("load calls for aggregation", err)
	}
	return Aggregate(records, Params{
		Date:      from.Format(utils.DateLayout),
		Scope:     scope,
		LeadValue: c.leadValue,
		Location:  c.loc,
	}), nil
}
