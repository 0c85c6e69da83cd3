package audit

import (
	"context"
	"database/sql"
)

const insertEventSQL = `
INSERT INTO audit_events (id, client_id, type, actor_user_id, actor_role, ip_address, assistant_id, message, metadata, created_at)
VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10)`

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	var metadata any
	if len(e.Metadata) > 0 {
		metadata = []byte(e.Metadata)
	}
	_, err := r.db.ExecContext(ctx, insertEventSQL,
		e.ID, e.ClientID, string(e.Type), e.ActorUserID, e.ActorRole, e.IPAddress, e.AssistantID,
		e.Message, metadata, e.CreatedAt,
	)
	return err
}
