package assistants

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"call-analytics/internal/apperr"
	"call-analytics/internal/calls"
	"call-analytics/internal/provider"
)

// Source lists assistants from the provider.
type Source interface {
	ListAssistants(ctx context.Context) ([]provider.Assistant, error)
}

// ClientChecker is the subset of the tenant directory the syncer needs.
type ClientChecker interface {
	ClientExists(ctx context.Context, clientID string) (bool, error)
}

// Syncer mirrors provider assistants. Full resync and webhook delivery share upsert,
// so both paths produce the same stored record for the same provider object.
type Syncer struct {
	src     Source
	repo    Repository
	clients ClientChecker
	region  string
	log     *slog.Logger
}

func NewSyncer(src Source, repo Repository, clients ClientChecker, defaultRegion string, log *slog.Logger) *Syncer {
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{src: src, repo: repo, clients: clients, region: defaultRegion, log: log}
}

// SyncResult summarizes one full resync. Errors holds caller-safe messages
// keyed by the assistant id, or by list position when the id is unknown.
type SyncResult struct {
	Assistants []AssistantConfig `json:"assistants"`
	Failed     int               `json:"failed"`
	Errors     []string          `json:"errors,omitempty"`
}

// SyncAll upserts every provider assistant. One bad assistant is tallied and
// skipped; only a provider failure aborts the run. Assistants missing from the
// provider are not removed here; removal only happens on an explicit deletion event.
func (s *Syncer) SyncAll(ctx context.Context) (SyncResult, error) {
	list, err := s.src.ListAssistants(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	res := SyncResult{Assistants: make([]AssistantConfig, 0, len(list))}
	for i, a := range list {
		err := a.DecodeErr
		if err != nil {
			err = apperr.Wrap(apperr.KindValidation, "malformed assistant", err)
		} else {
			var cfg AssistantConfig
			if cfg, err = s.upsert(ctx, a); err == nil {
				res.Assistants = append(res.Assistants, cfg)
				continue
			}
		}
		label := a.ID
		if label == "" {
			label = "#" + strconv.Itoa(i)
		}
		res.Failed++
		res.Errors = append(res.Errors, label+": "+apperr.PublicMessage(err))
		s.log.Warn("assistant sync failed", slog.String("assistant_id", a.ID), slog.Int("index", i), slog.Any("err", err))
	}
	s.log.Info("assistants synced", slog.Int("count", len(res.Assistants)), slog.Int("failed", res.Failed))
	return res, nil
}

// ApplyWebhook applies one incremental event. Deletions return nil.
func (s *Syncer) ApplyWebhook(ctx context.Context, ev provider.AssistantEvent) (*AssistantConfig, error) {
	switch ev.Type {
	case provider.AssistantCreated, provider.AssistantUpdated:
		cfg, err := s.upsert(ctx, ev.Assistant)
		if err != nil {
			return nil, err
		}
		return &cfg, nil
	case provider.AssistantDeleted:
		removed, err := s.repo.Delete(ctx, ev.Assistant.ID)
		if err != nil {
			return nil, apperr.Store("delete assistant", err)
		}
		s.log.Info("assistant deleted", slog.String("assistant_id", ev.Assistant.ID), slog.Bool("existed", removed))
		return nil, nil
	default:
		return nil, apperr.Validation("unknown assistant event type")
	}
}

func (s *Syncer) upsert(ctx context.Context, a provider.Assistant) (AssistantConfig, error) {
	owner, err := s.resolveOwner(ctx, a)
	if err != nil {
		return AssistantConfig{}, err
	}
	cfg, err := s.repo.Upsert(ctx, AssistantConfig{
		ExternalAssistantID: a.ID,
		ClientID:            owner,
		Name:                a.Name,
		PhoneNumber:         calls.NormalizePhone(a.PhoneNumber, s.region),
		IsActive:            a.IsActive,
		Config:              a.Config,
	})
	if err != nil {
		return AssistantConfig{}, apperr.Store("upsert assistant", err)
	}
	return cfg, nil
}

// resolveOwner returns nil (leave unassigned) unless the provider metadata names a known client.
func (s *Syncer) resolveOwner(ctx context.Context, a provider.Assistant) (*string, error) {
	id := a.Metadata.ClientID
	if id == "" {
		return nil, nil
	}
	ok, err := s.clients.ClientExists(ctx, id)
	if err != nil {
		return nil, apperr.Store("lookup client", err)
	}
	if !ok {
		s.log.Warn("assistant names unknown client; leaving unassigned",
			slog.String("assistant_id", a.ID), slog.String("client_id", id))
		return nil, nil
	}
	return &id, nil
}

// AssistantOwner reports the client owning an assistant; found is false for unknown ids.
func (s *Syncer) AssistantOwner(ctx context.Context, assistantID string) (string, bool, error) {
	a, err := s.repo.Get(ctx, assistantID)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return a.Owner(), true, nil
}
