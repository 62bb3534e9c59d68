package pharmacy

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/jwalitptl/care-portal/internal/confirm"
	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/service/audit"
	"github.com/jwalitptl/care-portal/pkg/backend"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
	"github.com/jwalitptl/care-portal/pkg/messaging"
	"github.com/jwalitptl/care-portal/pkg/validator"
)

// Backend is the part of the hospital API this service uses.
type Backend interface {
	PharmacyStats(ctx context.Context, s backend.Session) (model.PharmacyStats, error)
	ListPendingPrescriptions(ctx context.Context, s backend.Session) ([]model.Prescription, error)
	ListMedicines(ctx context.Context, s backend.Session) ([]model.Medicine, error)
	GetPrescription(ctx context.Context, s backend.Session, id string) (model.Prescription, error)
	UpdatePrescriptionStatus(ctx context.Context, s backend.Session, id string, status model.PrescriptionStatus) error
	CreateMedicine(ctx context.Context, s backend.Session, m model.Medicine) (*model.Medicine, error)
	UpdateMedicine(ctx context.Context, s backend.Session, id string, patch model.MedicinePatch) error
	DeleteMedicine(ctx context.Context, s backend.Session, id string) error
	AdjustStock(ctx context.Context, s backend.Session, id string, adj model.StockAdjustment) error
}

type Service struct {
	backend  Backend
	views    *ViewStore
	confirm  *confirm.Store
	audit    audit.Recorder
	events   messaging.Publisher
	validate *validator.Validator
	log      zerolog.Logger
}

func NewService(b Backend, views *ViewStore, tokens *confirm.Store, rec audit.Recorder, events messaging.Publisher, log zerolog.Logger) *Service {
	if events == nil {
		events = messaging.NopPublisher{}
	}
	return &Service{
		backend:  b,
		views:    views,
		confirm:  tokens,
		audit:    rec,
		events:   events,
		validate: validator.New(),
		log:      log,
	}
}

// ViewRef identifies the open pharmacy view a mutation reloads.
type ViewRef struct {
	ID    string
	Query model.InventoryQuery
}

// normalizeQuery applies the view's initial state: all categories, by name.
func normalizeQuery(q model.InventoryQuery) model.InventoryQuery {
	if q.Category == "" {
		q.Category = model.CategoryAll
	}
	if q.SortBy == "" {
		q.SortBy = model.SortByName
	}
	return q
}

// Dashboard loads stats, pending prescriptions and medicines concurrently
// and fails if any of the three fails.
func (s *Service) Dashboard(ctx context.Context, sess backend.Session, view ViewRef) (model.Dashboard, error) {
	var (
		stats     model.PharmacyStats
		pending   []model.Prescription
		medicines []model.Medicine
	)

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		var err error
		stats, err = s.backend.PharmacyStats(ctx, sess)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		pending, err = s.backend.ListPendingPrescriptions(ctx, sess)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		medicines, err = s.backend.ListMedicines(ctx, sess)
		return err
	})
	if err := p.Wait(); err != nil {
		s.log.Error().Err(err).Msg("failed to load pharmacy data")
		return model.Dashboard{}, err
	}

	if view.ID != "" {
		s.views.Set(view.ID, pending)
	}

	q := normalizeQuery(view.Query)
	return model.Dashboard{
		Stats:                stats,
		PendingPrescriptions: pending,
		Medicines:            FilterMedicines(medicines, q),
		LowStock:             LowStock(medicines),
		Query:                q,
		Categories:           model.MedicineCategories,
		Forms:                model.MedicineForms,
	}, nil
}

// reload returns the refreshed view after a change the backend accepted. A
// failed reload is logged and yields nil; the change itself stands.
func (s *Service) reload(ctx context.Context, sess backend.Session, view ViewRef, change string) *model.Dashboard {
	d, err := s.Dashboard(ctx, sess, view)
	if err != nil {
		s.log.Warn().Err(err).Str("change", change).Msg("change applied but the view reload failed")
		return nil
	}
	return &d
}

// UpdatePrescriptionStatus changes a prescription's status and reloads the view.
func (s *Service) UpdatePrescriptionStatus(ctx context.Context, sess backend.Session, view ViewRef, id string, status model.PrescriptionStatus) (*model.Dashboard, error) {
	if id == "" {
		return nil, apperrors.Validation("prescription id is required")
	}
	if !status.Valid() {
		return nil, apperrors.Validation("status must be Pending, Dispensed, PartiallyDispensed or Cancelled")
	}

	if err := s.backend.UpdatePrescriptionStatus(ctx, sess, id, status); err != nil {
		s.log.Error().Err(err).Str("prescription_id", id).Msg("failed to update prescription")
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Session:    sess,
		Action:     model.AuditActionStatusChange,
		EntityType: model.AuditEntityPrescription,
		EntityID:   id,
		Metadata:   map[string]string{"status": string(status)},
	})
	s.publish(ctx, messaging.NewEvent(messaging.EventPrescriptionStatusChanged, sess.Email, id,
		map[string]string{"status": string(status)}))

	return s.reload(ctx, sess, view, "prescription status"), nil
}

// PreviewAdjustment computes the new stock for the adjust-stock form from the
// medicine's current level.
func (s *Service) PreviewAdjustment(ctx context.Context, sess backend.Session, medicineID string, adj model.StockAdjustment) (model.StockPreview, error) {
	m, err := s.findMedicine(ctx, sess, medicineID)
	if err != nil {
		return model.StockPreview{}, err
	}
	newStock, err := PreviewStock(m.StockQuantity, adj.Quantity, adj.Operation)
	if err != nil {
		return model.StockPreview{}, err
	}
	return model.StockPreview{
		MedicineID: m.ID,
		Current:    m.StockQuantity,
		Quantity:   adj.Quantity,
		Operation:  adj.Operation,
		NewStock:   newStock,
	}, nil
}

func (s *Service) findMedicine(ctx context.Context, sess backend.Session, id string) (model.Medicine, error) {
	if id == "" {
		return model.Medicine{}, apperrors.Validation("medicine id is required")
	}
	list, err := s.backend.ListMedicines(ctx, sess)
	if err != nil {
		return model.Medicine{}, err
	}
	for _, m := range list {
		if m.ID == id {
			return m, nil
		}
	}
	return model.Medicine{}, apperrors.NotFound("medicine", nil)
}

// AdjustStock submits a stock change and reloads the view. The quantity must
// be a positive whole number.
func (s *Service) AdjustStock(ctx context.Context, sess backend.Session, view ViewRef, medicineID string, adj model.StockAdjustment) (*model.Dashboard, error) {
	if medicineID == "" {
		return nil, apperrors.Validation("medicine id is required")
	}
	if adj.Quantity == 0 {
		return nil, apperrors.Validation("Please enter quantity")
	}
	if err := s.validate.Struct(adj); err != nil {
		return nil, err
	}

	if err := s.backend.AdjustStock(ctx, sess, medicineID, adj); err != nil {
		s.log.Error().Err(err).Str("medicine_id", medicineID).Msg("failed to update stock")
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Session:    sess,
		Action:     model.AuditActionStockAdjust,
		EntityType: model.AuditEntityMedicine,
		EntityID:   medicineID,
		Metadata:   adj,
	})
	s.publish(ctx, messaging.NewEvent(messaging.EventMedicineStockAdjusted, sess.Email, medicineID, adj))

	return s.reload(ctx, sess, view, "stock adjustment"), nil
}

// NewMedicine applies the add-form defaults to req.
func NewMedicine(req model.MedicineRequest) model.Medicine {
	m := model.Medicine{
		Name:          strings.TrimSpace(req.Name),
		GenericName:   strings.TrimSpace(req.GenericName),
		Category:      req.Category,
		Form:          req.Form,
		Strength:      strings.TrimSpace(req.Strength),
		StockQuantity: req.StockQuantity,
		ReorderLevel:  model.DefaultMedicineReorderLevel,
		Manufacturer:  strings.TrimSpace(req.Manufacturer),
	}
	if req.Price != nil {
		m.Price = *req.Price
	}
	if req.ReorderLevel != nil {
		m.ReorderLevel = *req.ReorderLevel
	}
	if m.Category == "" {
		m.Category = model.DefaultMedicineCategory
	}
	if m.Form == "" {
		m.Form = model.DefaultMedicineForm
	}
	if m.Manufacturer == "" {
		m.Manufacturer = model.DefaultMedicineManufacturer
	}
	return m
}

func (s *Service) AddMedicine(ctx context.Context, sess backend.Session, view ViewRef, req model.MedicineRequest) (*model.Dashboard, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Strength) == "" || req.Price == nil {
		return nil, apperrors.Validation("Please fill in all required fields")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	m := NewMedicine(req)
	created, err := s.backend.CreateMedicine(ctx, sess, m)
	if err != nil {
		s.log.Error().Err(err).Str("medicine", m.Name).Msg("failed to add medicine")
		return nil, err
	}
	id := ""
	if created != nil {
		id = created.ID
	}

	s.audit.Record(ctx, audit.Entry{
		Session:    sess,
		Action:     model.AuditActionCreate,
		EntityType: model.AuditEntityMedicine,
		EntityID:   id,
		Metadata:   m,
	})
	s.publish(ctx, messaging.NewEvent(messaging.EventMedicineChanged, sess.Email, id, map[string]string{"change": "create"}))

	return s.reload(ctx, sess, view, "add medicine"), nil
}

func (s *Service) UpdateMedicine(ctx context.Context, sess backend.Session, view ViewRef, id string, patch model.MedicinePatch) (*model.Dashboard, error) {
	if id == "" {
		return nil, apperrors.Validation("medicine id is required")
	}
	if err := s.validate.Struct(patch); err != nil {
		return nil, err
	}

	if err := s.backend.UpdateMedicine(ctx, sess, id, patch); err != nil {
		s.log.Error().Err(err).Str("medicine_id", id).Msg("failed to update medicine")
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Session:    sess,
		Action:     model.AuditActionUpdate,
		EntityType: model.AuditEntityMedicine,
		EntityID:   id,
		Metadata:   patch,
	})
	s.publish(ctx, messaging.NewEvent(messaging.EventMedicineChanged, sess.Email, id, map[string]string{"change": "update"}))

	return s.reload(ctx, sess, view, "update medicine"), nil
}

// RequestDeleteMedicine issues the confirmation token for deleting a medicine.
func (s *Service) RequestDeleteMedicine(ctx context.Context, sess backend.Session, id string) (confirm.Pending, error) {
	if id == "" {
		return confirm.Pending{}, apperrors.Validation("medicine id is required")
	}
	return s.confirm.Issue(confirm.KindDeleteMedicine, sess.Email, id, ""), nil
}

func (s *Service) ConfirmDeleteMedicine(ctx context.Context, sess backend.Session, view ViewRef, token string) (*model.Dashboard, error) {
	pending, err := s.confirm.Consume(confirm.KindDeleteMedicine, sess.Email, token)
	if err != nil {
		return nil, err
	}

	if err := s.backend.DeleteMedicine(ctx, sess, pending.TargetID); err != nil {
		s.log.Error().Err(err).Str("medicine_id", pending.TargetID).Msg("failed to delete medicine")
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Session:    sess,
		Action:     model.AuditActionDelete,
		EntityType: model.AuditEntityMedicine,
		EntityID:   pending.TargetID,
	})
	s.publish(ctx, messaging.NewEvent(messaging.EventMedicineChanged, sess.Email, pending.TargetID, map[string]string{"change": "delete"}))

	return s.reload(ctx, sess, view, "delete medicine"), nil
}

// LookupPrescription fetches a prescription by id and merges it into the
// view's pending list. A view seen for the first time is seeded from the
// backend's pending list.
func (s *Service) LookupPrescription(ctx context.Context, sess backend.Session, viewID, id string) (model.Prescription, []model.Prescription, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Prescription{}, nil, apperrors.Validation("prescription id is required")
	}

	p, err := s.backend.GetPrescription(ctx, sess, id)
	if err != nil {
		s.log.Warn().Err(err).Str("prescription_id", id).Msg("prescription lookup failed")
		return model.Prescription{}, nil, err
	}

	if _, ok := s.views.Get(viewID); !ok {
		pending, err := s.backend.ListPendingPrescriptions(ctx, sess)
		if err != nil {
			s.log.Warn().Err(err).Str("view_id", viewID).Msg("could not seed pending list")
			pending = []model.Prescription{}
		}
		s.views.Set(viewID, pending)
	}
	return p, s.views.Merge(viewID, p), nil
}

func (s *Service) publish(ctx context.Context, ev messaging.Event) {
	_ = s.events.Publish(ctx, ev)
}
