package rollup

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"call-analytics/internal/tenancy"
)

// Repository stores one DailyMetrics per (date, clientId, assistantId).
// Empty ids mean "not narrowed" and are part of the key.
type Repository interface {
	Upsert(ctx context.Context, m DailyMetrics) error
	Get(ctx context.Context, date string, scope tenancy.Scope) (DailyMetrics, bool, error)
	// Scopes lists the distinct scopes with a stored document dated in [fromDate, toDate].
	Scopes(ctx context.Context, fromDate, toDate string) ([]tenancy.Scope, error)
}

type metricsKey struct {
	date  string
	scope tenancy.Scope
}

type MemoryRepo struct {
	mu   sync.RWMutex
	docs map[metricsKey]DailyMetrics
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{docs: make(map[metricsKey]DailyMetrics)}
}

func (r *MemoryRepo) Upsert(_ context.Context, m DailyMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[metricsKey{m.Date, m.Scope()}] = m
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, date string, scope tenancy.Scope) (DailyMetrics, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.docs[metricsKey{date, scope}]
	return m, ok, nil
}

func (r *MemoryRepo) Scopes(_ context.Context, fromDate, toDate string) ([]tenancy.Scope, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[tenancy.Scope]bool)
	var out []tenancy.Scope
	for k := range r.docs {
		if k.date < fromDate || k.date > toDate || seen[k.scope] {
			continue
		}
		seen[k.scope] = true
		out = append(out, k.scope)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ClientID != out[j].ClientID {
			return out[i].ClientID < out[j].ClientID
		}
		return out[i].AssistantID < out[j].AssistantID
	})
	return out, nil
}

func (r *MemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// PostgresRepo keeps the document as jsonb keyed by the composite unique index.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Upsert(ctx context.Context, m DailyMetrics) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO daily_metrics (metric_date, client_id, assistant_id, metrics, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (metric_date, client_id, assistant_id) DO UPDATE SET
	metrics = EXCLUDED.metrics,
	updated_at = EXCLUDED.updated_at`,
		m.Date, m.ClientID, m.AssistantID, doc, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert daily metrics %s: %w", m.Date, err)
	}
	return nil
}

func (r *PostgresRepo) Get(ctx context.Context, date string, scope tenancy.Scope) (DailyMetrics, bool, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx, `
SELECT metrics FROM daily_metrics
WHERE metric_date = $1 AND client_id = $2 AND assistant_id = $3`,
		date, scope.ClientID, scope.AssistantID,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return DailyMetrics{}, false, nil
	}
	if err != nil {
		return DailyMetrics{}, false, err
	}
	var m DailyMetrics
	if err := json.Unmarshal(doc, &m); err != nil {
		return DailyMetrics{}, false, fmt.Errorf("decode daily metrics %s: %w", date, err)
	}
	if m.HourlyBreakdown == nil {
		m.HourlyBreakdown = map[int]int{}
	}
	return m, true, nil
}

func (r *PostgresRepo) Scopes(ctx context.Context, fromDate, toDate string) ([]tenancy.Scope, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT DISTINCT client_id, assistant_id FROM daily_metrics
WHERE metric_date >= $1 AND metric_date <= $2
ORDER BY client_id, assistant_id`,
		fromDate, toDate,
	)
	if err != nil {
		return nil, fmt.Errorf("list daily metrics scopes: %w", err)
	}
	defer rows.Close()

	var out []tenancy.Scope
	for rows.Next() {
		var s tenancy.Scope
		if err := rows.Scan(&s.ClientID, &s.AssistantID); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
