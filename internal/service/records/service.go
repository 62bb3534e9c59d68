package records

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/jwalitptl/care-portal/internal/confirm"
	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/service/audit"
	"github.com/jwalitptl/care-portal/pkg/backend"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
	"github.com/jwalitptl/care-portal/pkg/messaging"
)

// Backend is the part of the hospital API this service uses.
type Backend interface {
	ListAppointmentRecords(ctx context.Context, s backend.Session, appointmentID string) (backend.AppointmentRecords, error)
	ListPatientPrescriptions(ctx context.Context, s backend.Session, email string) ([]model.Prescription, error)
	UploadPatientRecord(ctx context.Context, s backend.Session, up backend.RecordUpload) error
	DeletePatientRecord(ctx context.Context, s backend.Session, recordID string) error
}

type Service struct {
	backend  Backend
	confirm  *confirm.Store
	audit    audit.Recorder
	events   messaging.Publisher
	location *time.Location
	log      zerolog.Logger
}

type Option func(*Service)

func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.location = loc }
}

func WithEvents(p messaging.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func NewService(b Backend, tokens *confirm.Store, rec audit.Recorder, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		backend:  b,
		confirm:  tokens,
		audit:    rec,
		events:   messaging.NopPublisher{},
		location: time.Local,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Records loads uploads and visit records for an appointment. Prescriptions
// for the visit cross-reference are loaded alongside; if they fail the
// visits are shown without them.
func (s *Service) Records(ctx context.Context, sess backend.Session, appointmentID string) (model.AppointmentRecords, error) {
	if appointmentID == "" {
		return model.AppointmentRecords{}, apperrors.Validation("appointment id is required")
	}

	var raw backend.AppointmentRecords
	var prescriptions []model.Prescription

	p := pool.New().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		var err error
		raw, err = s.backend.ListAppointmentRecords(ctx, sess, appointmentID)
		return err
	})
	if sess.Email != "" {
		p.Go(func(ctx context.Context) error {
			list, err := s.backend.ListPatientPrescriptions(ctx, sess, sess.Email)
			if err != nil {
				s.log.Warn().Err(err).Str("appointment_id", appointmentID).
					Msg("prescriptions unavailable for visit records")
				return nil
			}
			prescriptions = list
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		s.log.Error().Err(err).Str("appointment_id", appointmentID).Msg("failed to load patient records")
		return model.AppointmentRecords{}, err
	}

	return s.assemble(appointmentID, raw, prescriptions), nil
}

func (s *Service) assemble(appointmentID string, raw backend.AppointmentRecords, prescriptions []model.Prescription) model.AppointmentRecords {
	doctor, patient := Partition(raw.FileUploads)
	visits := make([]model.VisitEntry, 0, len(raw.FullRecords))
	for _, rec := range raw.FullRecords {
		visits = append(visits, model.VisitEntry{
			MedicalRecord: rec,
			Prescriptions: PrescriptionsForVisit(rec, prescriptions, s.location),
		})
	}
	return model.AppointmentRecords{
		AppointmentID:  appointmentID,
		Summary:        Summarize(raw.FileUploads),
		DoctorUploads:  doctor,
		PatientUploads: patient,
		Visits:         visits,
	}
}

// UploadRequest is a patient's record upload. File is nil when none was chosen.
type UploadRequest struct {
	AppointmentID string
	Title         string
	Description   string
	File          *backend.File
}

// Upload validates locally, sends the file as a patient upload and returns
// the reloaded records for the appointment, or nil records when only the
// reload failed.
func (s *Service) Upload(ctx context.Context, sess backend.Session, req UploadRequest) (*model.AppointmentRecords, error) {
	if strings.TrimSpace(req.Title) == "" || req.File == nil || req.File.Content == nil {
		return nil, apperrors.Validation("Please provide a title and select a file")
	}
	if req.AppointmentID == "" {
		return nil, apperrors.Validation("appointment id is required")
	}

	err := s.backend.UploadPatientRecord(ctx, sess, backend.RecordUpload{
		Title:         req.Title,
		Description:   req.Description,
		AppointmentID: req.AppointmentID,
		UploadedBy:    model.UploaderPatient,
		File:          *req.File,
	})
	if err != nil {
		s.log.Error().Err(err).Str("appointment_id", req.AppointmentID).Msg("record upload failed")
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Session:    sess,
		Action:     model.AuditActionUpload,
		EntityType: model.AuditEntityPatientRecord,
		EntityID:   req.AppointmentID,
		Metadata:   map[string]string{"title": req.Title, "file": req.File.Name},
	})
	s.publish(ctx, messaging.NewEvent(messaging.EventRecordUploaded, sess.Email, req.AppointmentID,
		map[string]string{"title": req.Title}))

	return s.reload(ctx, sess, req.AppointmentID), nil
}

// RequestDelete issues the confirmation token for deleting a record.
func (s *Service) RequestDelete(ctx context.Context, sess backend.Session, recordID, appointmentID string) (confirm.Pending, error) {
	if recordID == "" {
		return confirm.Pending{}, apperrors.Validation("record id is required")
	}
	return s.confirm.Issue(confirm.KindDeleteRecord, sess.Email, recordID, appointmentID), nil
}

// ConfirmDelete deletes the record behind token and returns the reloaded
// records of its appointment. Invalid tokens never reach the backend.
func (s *Service) ConfirmDelete(ctx context.Context, sess backend.Session, token string) (*model.AppointmentRecords, error) {
	pending, err := s.confirm.Consume(confirm.KindDeleteRecord, sess.Email, token)
	if err != nil {
		return nil, err
	}

	if err := s.backend.DeletePatientRecord(ctx, sess, pending.TargetID); err != nil {
		s.log.Error().Err(err).Str("record_id", pending.TargetID).Msg("record delete failed")
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Session:    sess,
		Action:     model.AuditActionDelete,
		EntityType: model.AuditEntityPatientRecord,
		EntityID:   pending.TargetID,
		Metadata:   map[string]string{"appointment": pending.Scope},
	})
	s.publish(ctx, messaging.NewEvent(messaging.EventRecordDeleted, sess.Email, pending.TargetID, nil))

	if pending.Scope == "" {
		return &model.AppointmentRecords{}, nil
	}
	return s.reload(ctx, sess, pending.Scope), nil
}

// reload returns the appointment's records after a change the backend
// accepted. A failed reload is logged and yields nil; the change stands.
func (s *Service) reload(ctx context.Context, sess backend.Session, appointmentID string) *model.AppointmentRecords {
	recs, err := s.Records(ctx, sess, appointmentID)
	if err != nil {
		s.log.Warn().Err(err).Str("appointment_id", appointmentID).Msg("change applied but the records reload failed")
		return nil
	}
	return &recs
}

func (s *Service) publish(ctx context.Context, ev messaging.Event) {
	// Publisher logs its own failures.
	_ = s.events.Publish(ctx, ev)
}
