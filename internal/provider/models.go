package provider

import (
	"encoding/json"
	"time"
)

// CallEvent is one call as reported by the provider.
// Raw holds the exact JSON element so it can be stored for audit.
// DecodeErr is set when the element could not be decoded; only Raw and ID are then usable.
type CallEvent struct {
	ID              string     `json:"id"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds float64    `json:"duration_seconds"`
	Cost            float64    `json:"cost"`
	Transcript      string     `json:"transcript,omitempty"`
	Summary         string     `json:"summary,omitempty"`
	AssistantID     string     `json:"assistant_id,omitempty"`
	From            string     `json:"from,omitempty"`

	// Analysis is present once the provider has evaluated the call.
	Analysis *Analysis `json:"analysis,omitempty"`

	Raw       json.RawMessage `json:"-"`
	DecodeErr error           `json:"-"`
}

// Analysis is the provider's definitive evaluation of a call.
type Analysis struct {
	Qualified      *bool    `json:"qualified,omitempty"`
	CaseType       string   `json:"case_type,omitempty"`
	EstimatedValue *float64 `json:"estimated_value,omitempty"`
	Summary        string   `json:"summary,omitempty"`
}

type CallStatistics struct {
	TotalCalls             int           `json:"total_calls"`
	CompletedCalls         int           `json:"completed_calls"`
	TotalDurationSeconds   float64       `json:"total_duration_seconds"`
	AverageDurationSeconds float64       `json:"average_duration_seconds"`
	HourlyData             []HourlyCount `json:"hourly_data"`
}

type HourlyCount struct {
	Hour  int `json:"hour"`
	Calls int `json:"calls"`
}

// Assistant is a provider-side voice assistant.
// Config is the full provider object, mirrored verbatim into AssistantConfig.
type Assistant struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	PhoneNumber string            `json:"phone_number,omitempty"`
	IsActive    bool              `json:"is_active"`
	Metadata    AssistantMetadata `json:"metadata"`

	Config json.RawMessage `json:"-"`
	// DecodeErr is set when the element could not be decoded; only ID and Config are then usable.
	DecodeErr error `json:"-"`
}

// AssistantMetadata carries our tenant binding when the assistant was provisioned for a client.
type AssistantMetadata struct {
	ClientID string `json:"client_id,omitempty"`
}

type AssistantEventType string

const (
	AssistantCreated AssistantEventType = "assistant.created"
	AssistantUpdated AssistantEventType = "assistant.updated"
	AssistantDeleted AssistantEventType = "assistant.deleted"
)

// AssistantEvent is an incremental webhook delivery.
type AssistantEvent struct {
	Type      AssistantEventType `json:"type"`
	Assistant Assistant          `json:"assistant"`
}
