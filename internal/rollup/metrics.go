// Package rollup computes per-day, per-scope call metrics and stores them as DailyMetrics.
package rollup

import (
	"math"
	"sort"
	"time"

	"call-analytics/internal/calls"
	"call-analytics/internal/tenancy"
)

// DailyMetrics is the aggregate of one calendar day for one scope.
// It is derived data and may be dropped and rebuilt from call records at any time.
type DailyMetrics struct {
	Date        string `json:"date"`
	ClientID    string `json:"clientId,omitempty"`
	AssistantID string `json:"assistantId,omitempty"`

	TotalCalls      int `json:"totalCalls"`
	SuccessfulCalls int `json:"successfulCalls"`
	FailedCalls     int `json:"failedCalls"`
	QualifiedCalls  int `json:"qualifiedCalls"`

	TotalDurationSeconds   float64 `json:"totalDurationSeconds"`
	AverageDurationSeconds float64 `json:"averageDurationSeconds"`
	TotalCost              float64 `json:"totalCost"`
	EstimatedRevenue       float64 `json:"estimatedRevenue"`

	// Percentages in [0, 100]; 0 when there are no calls.
	SuccessRate       float64 `json:"successRate"`
	QualificationRate float64 `json:"qualificationRate"`

	// HourlyBreakdown maps hour of day (0-23) to call count; hours without calls are absent.
	HourlyBreakdown map[int]int `json:"hourlyBreakdown"`
}

func (m DailyMetrics) Scope() tenancy.Scope {
	return tenancy.Scope{ClientID: m.ClientID, AssistantID: m.AssistantID}
}

// Params fixes everything Aggregate depends on besides the records.
type Params struct {
	Date      string
	Scope     tenancy.Scope
	LeadValue float64
	Location  *time.Location
}

// Aggregate computes DailyMetrics for records in one pass. It is pure: the input is
// copied and sorted by (CreatedAt, ExternalCallID) so float sums do not depend on
// store iteration order, and equal inputs marshal to identical JSON.
func Aggregate(records []calls.CallRecord, p Params) DailyMetrics {
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}

	sorted := make([]calls.CallRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ExternalCallID < sorted[j].ExternalCallID
	})

	m := DailyMetrics{
		Date:            p.Date,
		ClientID:        p.Scope.ClientID,
		AssistantID:     p.Scope.AssistantID,
		HourlyBreakdown: map[int]int{},
	}
	var duration, cost float64
	for _, rec := range sorted {
		m.TotalCalls++
		switch {
		case rec.Status.IsSuccessful():
			m.SuccessfulCalls++
		case rec.Status.IsFailed():
			m.FailedCalls++
		}
		if rec.IsQualified {
			m.QualifiedCalls++
		}
		duration += rec.DurationSeconds
		cost += rec.Cost
		m.HourlyBreakdown[rec.CreatedAt.In(loc).Hour()]++
	}

	m.TotalDurationSeconds = round(duration, 2)
	m.TotalCost = round(cost, 4)
	m.AverageDurationSeconds = round(safeDiv(duration, float64(m.TotalCalls)), 2)
	m.SuccessRate = round(100*safeDiv(float64(m.SuccessfulCalls), float64(m.TotalCalls)), 2)
	m.QualificationRate = round(100*safeDiv(float64(m.QualifiedCalls), float64(m.TotalCalls)), 2)
	m.EstimatedRevenue = round(float64(m.QualifiedCalls)*p.LeadValue, 2)
	return m
}

func safeDiv(n, d float64) float64 {
	if d == 0 {
		return 0
	}
	return n / d
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
