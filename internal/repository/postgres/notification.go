package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/repository"
)

const defaultAlertLimit = 20

type alertRepository struct {
	BaseRepository
}

func NewAlertRepository(base BaseRepository) repository.AlertRepository {
	return &alertRepository{base}
}

func (r *alertRepository) Create(ctx context.Context, alert *model.Alert) (err error) {
	defer func(start time.Time) { r.observe("alerts.create", start, err) }(time.Now())

	query := `
        INSERT INTO portal_alerts (
            id, kind, recipient, subject, content, fingerprint, status, last_error, sent_at, created_at
        ) VALUES (
            :id, :kind, :recipient, :subject, :content, :fingerprint, :status, :last_error, :sent_at, :created_at
        )
    `
	if _, err = r.GetDB().NamedExecContext(ctx, query, alert); err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// ListRecent returns the newest alerts of kind, newest first.
func (r *alertRepository) ListRecent(ctx context.Context, kind string, limit int) ([]*model.Alert, error) {
	start := time.Now()
	if limit <= 0 {
		limit = defaultAlertLimit
	}

	var alerts []*model.Alert
	err := r.GetDB().SelectContext(ctx, &alerts, `
        SELECT * FROM portal_alerts
        WHERE kind = $1
        ORDER BY created_at DESC
        LIMIT $2
    `, kind, limit)
	r.observe("alerts.list", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}
