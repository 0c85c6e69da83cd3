package calls

import "call-analytics/internal/tenancy"

// Matches applies f to a single record. Store implementations that cannot push the
// filter down must produce the same result set as this function.
func Matches(rec CallRecord, f tenancy.QueryFilter) bool {
	if f.Scope.ClientID != "" && rec.ClientID != f.Scope.ClientID {
		return false
	}
	if f.Scope.AssistantID != "" && rec.AssistantID != f.Scope.AssistantID {
		return false
	}
	if f.Range != nil && !f.Range.Contains(rec.CreatedAt) {
		return false
	}
	if f.Status != "" && string(rec.Status) != f.Status {
		return false
	}
	if f.Qualified != nil && rec.IsQualified != *f.Qualified {
		return false
	}
	return true
}
