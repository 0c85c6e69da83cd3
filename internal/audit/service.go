package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only: there is no Update or Delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records internal audit information.
// Audit is internal-only and never exposed to tenant users.
type Service struct {
	repo  Repository
	log   *slog.Logger
	clock func() time.Time
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// record appends and swallows failures after logging them.
func (s *Service) record(ctx context.Context, e Event, details any) {
	if s == nil {
		return
	}
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			e.Metadata = b
		}
	}
	if err := s.Append(context.WithoutCancel(ctx), e); err != nil {
		s.log.Warn("audit append failed", slog.String("type", string(e.Type)), slog.Any("err", err))
	}
}

// LogSyncTriggered records a manual POST /sync with the run outcome in metadata.
func (s *Service) LogSyncTriggered(ctx context.Context, actor Actor, clientID, syncType string, outcome any) {
	s.record(ctx, Event{
		ClientID:    clientID,
		Type:        EventTypeSyncTriggered,
		ActorUserID: actor.UserID,
		ActorRole:   actor.Role,
		IPAddress:   actor.IP,
		Message:     "manual sync: " + syncType,
	}, outcome)
}

func (s *Service) LogAssistantsSynced(ctx context.Context, actor Actor, count int) {
	s.record(ctx, Event{
		Type:        EventTypeAssistantsSynced,
		ActorUserID: actor.UserID,
		ActorRole:   actor.Role,
		IPAddress:   actor.IP,
		Message:     "assistant configs synced",
	}, map[string]int{"assistants": count})
}

// LogAssistantChanged records a webhook-driven create or update.
func (s *Service) LogAssistantChanged(ctx context.Context, clientID, assistantID, eventType string) {
	s.record(ctx, Event{
		ClientID:    clientID,
		Type:        EventTypeAssistantChanged,
		AssistantID: assistantID,
		Message:     "assistant " + eventType,
	}, nil)
}

func (s *Service) LogAssistantDeleted(ctx context.Context, assistantID string) {
	s.record(ctx, Event{
		Type:        EventTypeAssistantDeleted,
		AssistantID: assistantID,
		Message:     "assistant deleted",
	}, nil)
}
