package assistants

import (
	"encoding/json"
	"time"
)

// AssistantConfig mirrors a provider assistant locally so calls can be tenant-scoped.
//
// ClientID is nil while the assistant is unassigned. Once assigned, a later sync that
// cannot determine an owner leaves the assignment untouched.
type AssistantConfig struct {
	ID                  string          `json:"id"`
	ExternalAssistantID string          `json:"externalAssistantId"`
	ClientID            *string         `json:"clientId"`
	Name                string          `json:"name"`
	PhoneNumber         string          `json:"phoneNumber,omitempty"`
	IsActive            bool            `json:"isActive"`
	Config              json.RawMessage `json:"config,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

func (a AssistantConfig) Owner() string {
	if a.ClientID == nil {
		return ""
	}
	return *a.ClientID
}
