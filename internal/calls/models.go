package calls

import (
	"encoding/json"
	"time"
)

// CallRecord is one provider call as stored locally.
//
// Invariants:
// - ExternalCallID is globally unique.
// - ID and CreatedAt are assigned on first observation and never change.
// - Records are never deleted.
type CallRecord struct {
	ID             string `json:"id"`
	ExternalCallID string `json:"externalCallId"`

	// Tenant scope; empty until the owning assistant is assigned to a client.
	ClientID    string `json:"clientId,omitempty"`
	AssistantID string `json:"assistantId,omitempty"`

	PhoneNumber string `json:"phoneNumber,omitempty"`

	Status         Status `json:"status"`
	ProviderStatus string `json:"providerStatus,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`

	DurationSeconds float64 `json:"durationSeconds"`
	Cost            float64 `json:"cost"`

	Transcript string `json:"transcript,omitempty"`
	Summary    string `json:"summary,omitempty"`

	IsQualified         bool                `json:"isQualified"`
	QualificationSource QualificationSource `json:"qualificationSource"`
	CaseType            string              `json:"caseType,omitempty"`
	EstimatedValue      *float64            `json:"estimatedValue,omitempty"`

	// RawPayload is the provider event as received, kept for audit/debug.
	RawPayload json.RawMessage `json:"-"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// QualificationSource records who decided IsQualified.
// An analysis verdict is definitive and is never replaced by the heuristic.
type QualificationSource string

const (
	QualificationHeuristic QualificationSource = "heuristic"
	QualificationAnalysis  QualificationSource = "analysis"
)

// QualifiedDurationSeconds is the heuristic threshold used until an analysis arrives.
const QualifiedDurationSeconds = 60

func QualifiesByDuration(durationSeconds float64) bool {
	return durationSeconds > QualifiedDurationSeconds
}
