// Package clients is a read-only view of the tenant directory.
// Tenant CRUD is owned by another service; analytics only checks existence and lists ids.
package clients

import (
	"context"
	"database/sql"
	"sort"
	"sync"
)

type Directory interface {
	ClientExists(ctx context.Context, clientID string) (bool, error)
	ListIDs(ctx context.Context) ([]string, error)
}

type MemoryDirectory struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewMemoryDirectory(ids ...string) *MemoryDirectory {
	d := &MemoryDirectory{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		d.ids[id] = struct{}{}
	}
	return d
}

func (d *MemoryDirectory) Add(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids[id] = struct{}{}
}

func (d *MemoryDirectory) ClientExists(_ context.Context, clientID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.ids[clientID]
	return ok, nil
}

func (d *MemoryDirectory) ListIDs(_ context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.ids))
	for id := range d.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) ClientExists(ctx context.Context, clientID string) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM clients WHERE id = $1)`, clientID,
	).Scan(&exists)
	return exists, err
}

func (d *PostgresDirectory) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id FROM clients ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
