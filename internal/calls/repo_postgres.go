package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"call-analytics/internal/tenancy"

	"github.com/google/uuid"
)

// PostgresRepo stores call records in call_records.
// Upsert relies on the unique index on external_call_id for atomicity across instances.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const upsertCallSQL = `
INSERT INTO call_records (
	id, external_call_id, client_id, assistant_id, phone_number,
	status, provider_status, created_at, started_at, ended_at,
	duration_seconds, cost, transcript, summary,
	is_qualified, qualification_source, case_type, estimated_value,
	raw_payload, updated_at
) VALUES (
	$1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''),
	$6, $7, $8, $9, $10,
	$11, $12, $13, $14,
	$15, $16, NULLIF($17, ''), $18,
	$19, $20
)
ON CONFLICT (external_call_id) DO UPDATE SET
	client_id = COALESCE(EXCLUDED.client_id, call_records.client_id),
	assistant_id = COALESCE(EXCLUDED.assistant_id, call_records.assistant_id),
	phone_number = COALESCE(EXCLUDED.phone_number, call_records.phone_number),
	status = EXCLUDED.status,
	provider_status = EXCLUDED.provider_status,
	started_at = EXCLUDED.started_at,
	ended_at = EXCLUDED.ended_at,
	duration_seconds = EXCLUDED.duration_seconds,
	cost = EXCLUDED.cost,
	transcript = EXCLUDED.transcript,
	summary = EXCLUDED.summary,
	is_qualified = CASE
		WHEN call_records.qualification_source = 'analysis' AND EXCLUDED.qualification_source <> 'analysis'
		THEN call_records.is_qualified
		ELSE EXCLUDED.is_qualified
	END,
	qualification_source = CASE
		WHEN call_records.qualification_source = 'analysis' THEN 'analysis'
		ELSE EXCLUDED.qualification_source
	END,
	case_type = COALESCE(EXCLUDED.case_type, call_records.case_type),
	estimated_value = COALESCE(EXCLUDED.estimated_value, call_records.estimated_value),
	raw_payload = EXCLUDED.raw_payload,
	updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0)`

func (r *PostgresRepo) Upsert(ctx context.Context, rec CallRecord) (bool, error) {
	if err := validate(rec); err != nil {
		return false, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	raw := []byte(rec.RawPayload)
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	var created bool
	err := r.db.QueryRowContext(ctx, upsertCallSQL,
		rec.ID, rec.ExternalCallID, rec.ClientID, rec.AssistantID, rec.PhoneNumber,
		string(rec.Status), rec.ProviderStatus, rec.CreatedAt.UTC(), nullTime(rec.StartedAt), nullTime(rec.EndedAt),
		rec.DurationSeconds, rec.Cost, rec.Transcript, rec.Summary,
		rec.IsQualified, string(rec.QualificationSource), rec.CaseType, nullFloat(rec.EstimatedValue),
		raw, time.Now().UTC(),
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("upsert call %s: %w", rec.ExternalCallID, err)
	}
	return created, nil
}

const selectCallColumns = `
	id, external_call_id, COALESCE(client_id, ''), COALESCE(assistant_id, ''), COALESCE(phone_number, ''),
	status, provider_status, created_at, started_at, ended_at,
	duration_seconds, cost, transcript, summary,
	is_qualified, qualification_source, COALESCE(case_type, ''), estimated_value,
	raw_payload, updated_at`

func (r *PostgresRepo) GetByExternalID(ctx context.Context, externalCallID string) (CallRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectCallColumns+` FROM call_records WHERE external_call_id = $1`, externalCallID)
	rec, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return CallRecord{}, ErrNotFound
	}
	return rec, err
}

func (r *PostgresRepo) List(ctx context.Context, f tenancy.QueryFilter, offset, limit int) ([]CallRecord, error) {
	where, args := whereClause(f)
	args = append(args, limit, offset)
	q := `SELECT ` + selectCallColumns + ` FROM call_records` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, external_call_id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	return r.query(ctx, q, args...)
}

func (r *PostgresRepo) Count(ctx context.Context, f tenancy.QueryFilter) (int, error) {
	where, args := whereClause(f)
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM call_records`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count calls: %w", err)
	}
	return n, nil
}

func (r *PostgresRepo) ListForAggregation(ctx context.Context, f tenancy.QueryFilter) ([]CallRecord, error) {
	where, args := whereClause(f)
	return r.query(ctx, `SELECT `+selectCallColumns+` FROM call_records`+where+` ORDER BY created_at ASC`, args...)
}

func (r *PostgresRepo) DistinctScopes(ctx context.Context, from, to time.Time) ([]tenancy.Scope, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT DISTINCT client_id, COALESCE(assistant_id, '')
FROM call_records
WHERE client_id IS NOT NULL AND created_at >= $1 AND created_at < $2
ORDER BY 1, 2`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("distinct scopes: %w", err)
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

func (r *PostgresRepo) query(ctx context.Context, q string, args ...any) ([]CallRecord, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()

	out := []CallRecord{}
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// whereClause renders f as a WHERE clause with positional args.
// Matches is the in-memory equivalent.
func whereClause(f tenancy.QueryFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}

	if f.Scope.ClientID != "" {
		add("client_id = $%d", f.Scope.ClientID)
	}
	if f.Scope.AssistantID != "" {
		add("assistant_id = $%d", f.Scope.AssistantID)
	}
	if f.Range != nil {
		add("created_at >= $%d", f.Range.From.UTC())
		add("created_at < $%d", f.Range.To.UTC())
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Qualified != nil {
		add("is_qualified = $%d", *f.Qualified)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (CallRecord, error) {
	var (
		rec       CallRecord
		status    string
		source    string
		startedAt sql.NullTime
		endedAt   sql.NullTime
		estimated sql.NullFloat64
		raw       []byte
	)
	err := row.Scan(
		&rec.ID, &rec.ExternalCallID, &rec.ClientID, &rec.AssistantID, &rec.PhoneNumber,
		&status, &rec.ProviderStatus, &rec.CreatedAt, &startedAt, &endedAt,
		&rec.DurationSeconds, &rec.Cost, &rec.Transcript, &rec.Summary,
		&rec.IsQualified, &source, &rec.CaseType, &estimated,
		&raw, &rec.UpdatedAt,
	)
	if err != nil {
		return CallRecord{}, err
	}
	rec.Status = Status(status)
	rec.QualificationSource = QualificationSource(source)
	if startedAt.Valid {
		t := startedAt.Time
		rec.StartedAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time
		rec.EndedAt = &t
	}
	if estimated.Valid {
		v := estimated.Float64
		rec.EstimatedValue = &v
	}
	rec.RawPayload = raw
	return rec, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
