package appointment

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/service/notification"
	"github.com/jwalitptl/care-portal/internal/service/records"
	"github.com/jwalitptl/care-portal/pkg/backend"
	"github.com/jwalitptl/care-portal/pkg/qr"
)

const prescriptionsUnavailable = "Could not load prescriptions"

// Backend is the part of the hospital API this service uses.
type Backend interface {
	ListAppointments(ctx context.Context, s backend.Session) ([]model.Appointment, error)
	ListPatientPrescriptions(ctx context.Context, s backend.Session, email string) ([]model.Prescription, error)
}

// QRFunc renders a prescription id as a data URL.
type QRFunc func(prescriptionID string) (string, error)

type Service struct {
	backend Backend
	records *records.Service
	qr      QRFunc
	log     zerolog.Logger
}

func NewService(b Backend, rec *records.Service, log zerolog.Logger) *Service {
	return &Service{
		backend: b,
		records: rec,
		qr: func(id string) (string, error) {
			return qr.DataURL(id, qr.DefaultSize)
		},
		log: log,
	}
}

// Load returns the appointments page. Appointments and prescriptions are
// fetched concurrently; only an appointments failure fails the page.
func (s *Service) Load(ctx context.Context, sess backend.Session) (model.AppointmentsView, error) {
	var (
		appointments  []model.Appointment
		prescriptions []model.Prescription
		rxErr         error
	)

	p := pool.New().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		var err error
		appointments, err = s.backend.ListAppointments(ctx, sess)
		return err
	})
	if sess.Email != "" {
		p.Go(func(ctx context.Context) error {
			prescriptions, rxErr = s.backend.ListPatientPrescriptions(ctx, sess, sess.Email)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		s.log.Error().Err(err).Msg("failed to load appointments")
		return model.AppointmentsView{}, err
	}

	view := model.AppointmentsView{Prescriptions: []model.Prescription{}}
	if rxErr != nil {
		s.log.Warn().Err(rxErr).Str("email", sess.Email).Msg("prescriptions unavailable")
		n := notification.FromError(rxErr, prescriptionsUnavailable)
		view.Notice = &n
	} else if prescriptions != nil {
		view.Prescriptions = s.withQR(prescriptions)
	}

	view.Appointments = make([]model.AppointmentRow, 0, len(appointments))
	for _, appt := range appointments {
		row := model.AppointmentRow{Appointment: appt}
		if rx, ok := records.PrescriptionForAppointment(appt, view.Prescriptions); ok {
			row.Prescription = &rx
		}
		view.Appointments = append(view.Appointments, row)
	}
	return view, nil
}

// Records returns the records modal content for one appointment.
func (s *Service) Records(ctx context.Context, sess backend.Session, appointmentID string) (model.AppointmentRecords, error) {
	return s.records.Records(ctx, sess, appointmentID)
}

// withQR fills qrCode for prescriptions the backend sent without one.
func (s *Service) withQR(list []model.Prescription) []model.Prescription {
	out := make([]model.Prescription, len(list))
	for i, p := range list {
		if p.QRCode == "" && p.ID != "" {
			url, err := s.qr(p.ID)
			if err != nil {
				s.log.Warn().Err(err).Str("prescription_id", p.ID).Msg("qr generation failed")
			} else {
				p.QRCode = url
			}
		}
		out[i] = p
	}
	return out
}
