package assistants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("assistants: not found")

// Repository is keyed by ExternalAssistantID.
// Upsert never replaces a stored ClientID with nil.
type Repository interface {
	Upsert(ctx context.Context, a AssistantConfig) (AssistantConfig, error)
	Get(ctx context.Context, externalAssistantID string) (AssistantConfig, error)
	Delete(ctx context.Context, externalAssistantID string) (bool, error)
	List(ctx context.Context) ([]AssistantConfig, error)
}

type MemoryRepo struct {
	mu    sync.RWMutex
	byExt map[string]AssistantConfig
	clock func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byExt: make(map[string]AssistantConfig), clock: time.Now}
}

func (r *MemoryRepo) Upsert(_ context.Context, a AssistantConfig) (AssistantConfig, error) {
	if a.ExternalAssistantID == "" {
		return AssistantConfig{}, errors.New("assistants: external id is required")
	}
	now := r.clock().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byExt[a.ExternalAssistantID]; ok {
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
		if a.ClientID == nil {
			a.ClientID = existing.ClientID
		}
	} else {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	r.byExt[a.ExternalAssistantID] = a
	return a, nil
}

func (r *MemoryRepo) Get(_ context.Context, externalAssistantID string) (AssistantConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byExt[externalAssistantID]
	if !ok {
		return AssistantConfig{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) Delete(_ context.Context, externalAssistantID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byExt[externalAssistantID]; !ok {
		return false, nil
	}
	delete(r.byExt, externalAssistantID)
	return true, nil
}

func (r *MemoryRepo) List(_ context.Context) ([]AssistantConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AssistantConfig, 0, len(r.byExt))
	for _, a := range r.byExt {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalAssistantID < out[j].ExternalAssistantID })
	return out, nil
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const assistantColumns = `id, external_assistant_id, client_id, name, phone_number, is_active, config, created_at, updated_at`

func (r *PostgresRepo) Upsert(ctx context.Context, a AssistantConfig) (AssistantConfig, error) {
	if a.ExternalAssistantID == "" {
		return AssistantConfig{}, errors.New("assistants: external id is required")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	cfg := []byte(a.Config)
	if len(cfg) == 0 {
		cfg = []byte("{}")
	}

	row := r.db.QueryRowContext(ctx, `
INSERT INTO assistant_configs (`+assistantColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
ON CONFLICT (external_assistant_id) DO UPDATE SET
	client_id = COALESCE(EXCLUDED.client_id, assistant_configs.client_id),
	name = EXCLUDED.name,
	phone_number = EXCLUDED.phone_number,
	is_active = EXCLUDED.is_active,
	config = EXCLUDED.config,
	updated_at = EXCLUDED.updated_at
RETURNING `+assistantColumns,
		a.ID, a.ExternalAssistantID, nullString(a.ClientID), a.Name, a.PhoneNumber, a.IsActive, cfg, time.Now().UTC(),
	)
	out, err := scanAssistant(row)
	if err != nil {
		return AssistantConfig{}, fmt.Errorf("upsert assistant %s: %w", a.ExternalAssistantID, err)
	}
	return out, nil
}

func (r *PostgresRepo) Get(ctx context.Context, externalAssistantID string) (AssistantConfig, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+assistantColumns+` FROM assistant_configs WHERE external_assistant_id = $1`, externalAssistantID)
	a, err := scanAssistant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return AssistantConfig{}, ErrNotFound
	}
	return a, err
}

func (r *PostgresRepo) Delete(ctx context.Context, externalAssistantID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM assistant_configs WHERE external_assistant_id = $1`, externalAssistantID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]AssistantConfig, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+assistantColumns+` FROM assistant_configs ORDER BY external_assistant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AssistantConfig
	for rows.Next() {
		a, err := scanAssistant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssistant(row rowScanner) (AssistantConfig, error) {
	var (
		a        AssistantConfig
		clientID sql.NullString
		cfg      []byte
	)
	if err := row.Scan(&a.ID, &a.ExternalAssistantID, &clientID, &a.Name, &a.PhoneNumber, &a.IsActive, &cfg, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return AssistantConfig{}, err
	}
	if clientID.Valid {
		v := clientID.String
		a.ClientID = &v
	}
	a.Config = cfg
	return a, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
