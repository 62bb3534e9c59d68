package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/repository"
)

const defaultAuditLimit = 100

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) (err error) {
	defer func(start time.Time) { r.observe("audit.create", start, err) }(time.Now())

	query := `
        INSERT INTO portal_audit_logs (
            id, actor_email, actor_role, action, entity_type, entity_id,
            metadata, request_id, ip_address, created_at
        ) VALUES (
            :id, :actor_email, :actor_role, :action, :entity_type, :entity_id,
            :metadata, :request_id, :ip_address, :created_at
        )
    `

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, query, log)
		return err
	})
}

func (r *auditRepository) List(ctx context.Context, filters model.AuditFilters) ([]*model.AuditLog, error) {
	start := time.Now()
	query, args := buildAuditListQuery(filters)

	var logs []*model.AuditLog
	err := r.GetDB().SelectContext(ctx, &logs, query, args...)
	r.observe("audit.list", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	return logs, nil
}

func buildAuditListQuery(filters model.AuditFilters) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	add := func(cond string, v interface{}) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filters.ActorEmail != "" {
		add("actor_email = $%d", filters.ActorEmail)
	}
	if filters.EntityType != "" {
		add("entity_type = $%d", filters.EntityType)
	}
	if filters.Action != "" {
		add("action = $%d", filters.Action)
	}
	if !filters.StartDate.IsZero() {
		add("created_at >= $%d", filters.StartDate)
	}
	if !filters.EndDate.IsZero() {
		add("created_at <= $%d", filters.EndDate)
	}

	query := "SELECT * FROM portal_audit_logs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	return query, args
}

func (r *auditRepository) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	start := time.Now()
	query := `
        DELETE FROM portal_audit_logs
        WHERE created_at < $1
    `

	result, err := r.GetDB().ExecContext(ctx, query, before)
	r.observe("audit.cleanup", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}

	return result.RowsAffected()
}
