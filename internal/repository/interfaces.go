package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jwalitptl/care-portal/internal/model"
)

// ErrNotFound is returned by stores when the key does not exist.
var ErrNotFound = errors.New("not found")

// All repository interfaces in one file
type (
	// AuditRepository persists the portal action trail.
	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		List(ctx context.Context, filters model.AuditFilters) ([]*model.AuditLog, error)
		Cleanup(ctx context.Context, before time.Time) (int64, error)
	}

	// AlertRepository keeps a history of outbound alerts.
	AlertRepository interface {
		Create(ctx context.Context, alert *model.Alert) error
		ListRecent(ctx context.Context, kind string, limit int) ([]*model.Alert, error)
	}

	// TranscriptRepository stores chatbot conversations.
	TranscriptRepository interface {
		Get(ctx context.Context, conversationID string) ([]model.ChatMessage, error)
		Save(ctx context.Context, conversationID string, messages []model.ChatMessage) error
		Delete(ctx context.Context, conversationID string) error
	}
)
