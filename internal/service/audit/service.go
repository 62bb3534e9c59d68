package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/repository"
	"github.com/jwalitptl/care-portal/pkg/backend"
)

type Service struct {
	repo   repository.AuditRepository
	stream *zap.Logger
}

// NewService writes entries to repo and stream. Either may be nil.
func NewService(repo repository.AuditRepository, stream *zap.Logger) *Service {
	if stream == nil {
		stream = zap.NewNop()
	}
	return &Service{repo: repo, stream: stream}
}

// Entry is one portal action.
type Entry struct {
	Session    backend.Session
	Action     string
	EntityType string
	EntityID   string
	Metadata   interface{}
}

// Log records entry. The stream line is always written; the database row
// only when a repository is configured.
func (s *Service) Log(ctx context.Context, e Entry) error {
	metadata := json.RawMessage("{}")
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		metadata = b
	}

	info := RequestInfoFrom(ctx)
	log := &model.AuditLog{
		ID:         uuid.New(),
		ActorEmail: e.Session.Email,
		ActorRole:  e.Session.Role,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Metadata:   metadata,
		RequestID:  info.RequestID,
		IPAddress:  info.IP,
		CreatedAt:  time.Now().UTC(),
	}

	s.stream.Info("portal action",
		zap.String("audit_id", log.ID.String()),
		zap.String("actor", log.ActorEmail),
		zap.String("role", log.ActorRole),
		zap.String("action", log.Action),
		zap.String("entity_type", log.EntityType),
		zap.String("entity_id", log.EntityID),
		zap.String("request_id", log.RequestID),
		zap.String("ip", log.IPAddress),
		zap.ByteString("metadata", log.Metadata),
	)

	if s.repo == nil {
		return nil
	}
	return s.repo.Create(ctx, log)
}

func (s *Service) List(ctx context.Context, filters model.AuditFilters) ([]*model.AuditLog, error) {
	if s.repo == nil {
		return []*model.AuditLog{}, nil
	}
	return s.repo.List(ctx, filters)
}

func (s *Service) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	if s.repo == nil {
		return 0, nil
	}
	return s.repo.Cleanup(ctx, before)
}

type requestInfoKey struct{}

// RequestInfo is the request metadata stamped on audit rows.
type RequestInfo struct {
	RequestID string
	IP        string
}

// WithRequestInfo is called by the request id middleware.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

func RequestInfoFrom(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}
