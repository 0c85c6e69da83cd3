package audit

import (
	"encoding/json"
	"time"
)

// Event is an append-only record of an operator action against the analytics store.
//
// Invariants:
// - Events are never updated or deleted.
// - ClientID is empty for platform-wide actions (global syncs, webhooks).
// - Audit writes are best-effort; sync and webhook flows never fail on them.
type Event struct {
	ID       string    `json:"id"`
	ClientID string    `json:"client_id,omitempty"`
	Type     EventType `json:"type"`

	// ActorUserID is empty for scheduler and webhook events.
	ActorUserID string `json:"actor_user_id,omitempty"`
	ActorRole   string `json:"actor_role,omitempty"`
	IPAddress   string `json:"ip_address,omitempty"`

	AssistantID string `json:"assistant_id,omitempty"`

	Message  string          `json:"message,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventTypeSyncTriggered    EventType = "sync_triggered"
	EventTypeAssistantsSynced EventType = "assistants_synced"
	EventTypeAssistantChanged EventType = "assistant_changed"
	EventTypeAssistantDeleted EventType = "assistant_deleted"
)

// Actor identifies who caused an event.
type Actor struct {
	UserID string
	Role   string
	IP     string
}
