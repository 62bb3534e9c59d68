package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jwalitptl/care-portal/internal/model"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
)

// ListAppointments returns the caller's appointments.
func (c *Client) ListAppointments(ctx context.Context, s Session) ([]model.Appointment, error) {
	var resp struct {
		Appointments []model.Appointment `json:"appointments"`
	}
	err := c.do(ctx, s, request{
		endpoint: "appointments.list",
		method:   http.MethodGet,
		path:     "/api/appointments",
		fallback: "Failed to load appointments",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return nonNil(resp.Appointments), nil
}

// ListPatientPrescriptions returns every prescription written for email.
func (c *Client) ListPatientPrescriptions(ctx context.Context, s Session, email string) ([]model.Prescription, error) {
	if email == "" {
		return nil, apperrors.Validation("patient email is required")
	}
	var resp struct {
		Prescriptions []model.Prescription `json:"prescriptions"`
	}
	err := c.do(ctx, s, request{
		endpoint: "prescriptions.by_patient",
		method:   http.MethodGet,
		path:     "/api/prescriptions/patient/" + seg(email),
		fallback: "Could not load prescriptions",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return nonNil(resp.Prescriptions), nil
}

// AppointmentRecords is the raw records payload for one appointment.
type AppointmentRecords struct {
	FileUploads []model.PatientRecord
	FullRecords []model.MedicalRecord
}

// ListAppointmentRecords returns file uploads and visit records for an appointment.
// Older backends send the uploads under "records" instead of "fileUploads".
func (c *Client) ListAppointmentRecords(ctx context.Context, s Session, appointmentID string) (AppointmentRecords, error) {
	var resp struct {
		FileUploads []model.PatientRecord `json:"fileUploads"`
		Records     []model.PatientRecord `json:"records"`
		FullRecords []model.MedicalRecord `json:"fullRecords"`
	}
	err := c.do(ctx, s, request{
		endpoint: "patient_records.by_appointment",
		method:   http.MethodGet,
		path:     "/api/patient-records/appointment/" + seg(appointmentID),
		fallback: "Failed to load patient records",
	}, &resp)
	if err != nil {
		return AppointmentRecords{}, err
	}

	uploads := resp.FileUploads
	if uploads == nil {
		uploads = resp.Records
	}
	return AppointmentRecords{
		FileUploads: nonNil(uploads),
		FullRecords: nonNil(resp.FullRecords),
	}, nil
}

// RecordUpload is the multipart body of a record upload.
type RecordUpload struct {
	Title         string
	Description   string
	AppointmentID string
	UploadedBy    model.UploaderRole
	File          File
}

func (c *Client) UploadPatientRecord(ctx context.Context, s Session, up RecordUpload) error {
	mp := newMultipart()
	mp.field("title", up.Title)
	mp.field("description", up.Description)
	mp.file("file", up.File)
	mp.field("appointmentId", up.AppointmentID)
	mp.field("uploadedBy", string(up.UploadedBy))
	body, contentType, err := mp.finish()
	if err != nil {
		return apperrors.Internal(fmt.Errorf("encode upload: %w", err))
	}

	return c.do(ctx, s, request{
		endpoint:    "patient_records.upload",
		method:      http.MethodPost,
		path:        "/api/patient-records/upload",
		body:        body,
		contentType: contentType,
		fallback:    "Upload failed",
	}, nil)
}

func (c *Client) DeletePatientRecord(ctx context.Context, s Session, recordID string) error {
	return c.do(ctx, s, request{
		endpoint: "patient_records.delete",
		method:   http.MethodDelete,
		path:     "/api/patient-records/" + seg(recordID),
		fallback: "Failed to delete record",
	}, nil)
}

// AnalyzeFailed is the message of an analyze error whose body carried none.
const AnalyzeFailed = "Unable to analyze the medical case"

// AnalyzeCase posts a patient case and its attachments and returns the analysis text.
func (c *Client) AnalyzeCase(ctx context.Context, s Session, form model.CaseForm, files []File) (string, error) {
	mp := newMultipart()
	for _, kv := range form.Fields() {
		mp.field(kv[0], kv[1])
	}
	for _, f := range files {
		mp.file("medicalFiles", f)
	}
	body, contentType, err := mp.finish()
	if err != nil {
		return "", apperrors.Internal(fmt.Errorf("encode case: %w", err))
	}

	var resp struct {
		Analysis string `json:"analysis"`
	}
	err = c.do(ctx, s, request{
		endpoint:    "doctor_chatbot.analyze",
		method:      http.MethodPost,
		path:        "/api/doctor-chatbot/analyze",
		body:        body,
		contentType: contentType,
		fallback:    AnalyzeFailed,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Analysis, nil
}

func (c *Client) PharmacyStats(ctx context.Context, s Session) (model.PharmacyStats, error) {
	var stats model.PharmacyStats
	err := c.do(ctx, s, request{
		endpoint: "pharmacy.stats",
		method:   http.MethodGet,
		path:     "/api/pharmacy/stats",
		fallback: "Failed to load data",
	}, &stats)
	return stats, err
}

func (c *Client) ListPendingPrescriptions(ctx context.Context, s Session) ([]model.Prescription, error) {
	var resp struct {
		Prescriptions []model.Prescription `json:"prescriptions"`
	}
	err := c.do(ctx, s, request{
		endpoint: "prescriptions.pending",
		method:   http.MethodGet,
		path:     "/api/prescriptions/pending",
		fallback: "Failed to load data",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return nonNil(resp.Prescriptions), nil
}

func (c *Client) ListMedicines(ctx context.Context, s Session) ([]model.Medicine, error) {
	var resp struct {
		Medicines []model.Medicine `json:"medicines"`
	}
	err := c.do(ctx, s, request{
		endpoint: "pharmacy.medicines.list",
		method:   http.MethodGet,
		path:     "/api/pharmacy/medicines",
		fallback: "Failed to load data",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return nonNil(resp.Medicines), nil
}

// GetPrescription fetches one prescription. A 2xx without a prescription is NotFound.
func (c *Client) GetPrescription(ctx context.Context, s Session, id string) (model.Prescription, error) {
	if id == "" {
		return model.Prescription{}, apperrors.Validation("prescription id is required")
	}
	var resp struct {
		Prescription *model.Prescription `json:"prescription"`
	}
	err := c.do(ctx, s, request{
		endpoint: "prescriptions.get",
		method:   http.MethodGet,
		path:     "/api/prescriptions/" + seg(id),
		fallback: "Prescription not found",
	}, &resp)
	if err != nil {
		return model.Prescription{}, err
	}
	if resp.Prescription == nil {
		return model.Prescription{}, apperrors.NotFound("prescription", nil)
	}
	return *resp.Prescription, nil
}

func (c *Client) UpdatePrescriptionStatus(ctx context.Context, s Session, id string, status model.PrescriptionStatus) error {
	body, err := jsonBody(map[string]string{"status": string(status)})
	if err != nil {
		return apperrors.Internal(err)
	}
	return c.do(ctx, s, request{
		endpoint:    "prescriptions.status",
		method:      http.MethodPatch,
		path:        "/api/prescriptions/" + seg(id) + "/status",
		body:        body,
		contentType: "application/json",
		fallback:    "Failed to update prescription",
	}, nil)
}

// CreateMedicine adds an inventory item. The backend's echo of the item is
// returned when it sends one.
func (c *Client) CreateMedicine(ctx context.Context, s Session, m model.Medicine) (*model.Medicine, error) {
	body, err := jsonBody(m)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	var resp struct {
		Medicine *model.Medicine `json:"medicine"`
	}
	err = c.do(ctx, s, request{
		endpoint:    "pharmacy.medicines.create",
		method:      http.MethodPost,
		path:        "/api/pharmacy/medicines",
		body:        body,
		contentType: "application/json",
		fallback:    "Failed to add medicine",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Medicine, nil
}

func (c *Client) UpdateMedicine(ctx context.Context, s Session, id string, patch model.MedicinePatch) error {
	body, err := jsonBody(patch)
	if err != nil {
		return apperrors.Internal(err)
	}
	return c.do(ctx, s, request{
		endpoint:    "pharmacy.medicines.update",
		method:      http.MethodPatch,
		path:        "/api/pharmacy/medicines/" + seg(id),
		body:        body,
		contentType: "application/json",
		fallback:    "Failed to update medicine",
	}, nil)
}

func (c *Client) DeleteMedicine(ctx context.Context, s Session, id string) error {
	return c.do(ctx, s, request{
		endpoint: "pharmacy.medicines.delete",
		method:   http.MethodDelete,
		path:     "/api/pharmacy/medicines/" + seg(id),
		fallback: "Failed to delete medicine",
	}, nil)
}

func (c *Client) AdjustStock(ctx context.Context, s Session, id string, adj model.StockAdjustment) error {
	body, err := jsonBody(adj)
	if err != nil {
		return apperrors.Internal(err)
	}
	return c.do(ctx, s, request{
		endpoint:    "pharmacy.medicines.stock",
		method:      http.MethodPatch,
		path:        "/api/pharmacy/medicines/" + seg(id) + "/stock",
		body:        body,
		contentType: "application/json",
		fallback:    "Failed to update stock",
	}, nil)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
