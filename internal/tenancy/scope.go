// Package tenancy turns an authenticated principal plus request parameters into the one
// authoritative query scope used by every store read below the HTTP layer.
package tenancy

import "time"

// Scope narrows data to a client and optionally one of its assistants.
// Empty fields mean "not narrowed"; the zero value is the global view.
type Scope struct {
	ClientID    string `json:"clientId,omitempty"`
	AssistantID string `json:"assistantId,omitempty"`
}

func (s Scope) IsGlobal() bool { return s.ClientID == "" && s.AssistantID == "" }

// DateRange is the half-open interval [From, To).
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// QueryFilter is built once per request by Resolver and passed down unchanged.
type QueryFilter struct {
	Scope     Scope
	Range     *DateRange
	Status    string
	Qualified *bool
}

// ForDay returns a filter over one calendar day within scope.
func ForDay(scope Scope, from, to time.Time) QueryFilter {
	return QueryFilter{Scope: scope, Range: &DateRange{From: from, To: to}}
}
