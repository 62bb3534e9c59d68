package model

type UploaderRole string

const (
	UploaderDoctor  UploaderRole = "doctor"
	UploaderPatient UploaderRole = "patient"
)

// PatientRecord is a file uploaded against an appointment.
type PatientRecord struct {
	ID            string       `json:"_id"`
	AppointmentID string       `json:"appointment,omitempty"`
	UploadedBy    UploaderRole `json:"uploadedBy"`
	Title         string       `json:"title"`
	Description   string       `json:"description,omitempty"`
	FileURL       string       `json:"fileUrl,omitempty"`
	Path          string       `json:"path,omitempty"`
	OriginalName  string       `json:"originalName,omitempty"`
	Mimetype      string       `json:"mimetype,omitempty"`
	Size          int64        `json:"size,omitempty"`
	UploadedAt    Timestamp    `json:"uploadedAt"`
}

// DownloadURL prefers the public URL over the storage path.
func (r PatientRecord) DownloadURL() string {
	if r.FileURL != "" {
		return r.FileURL
	}
	return r.Path
}

// MedicalRecord is a full visit entry written by a doctor. Read-only here.
type MedicalRecord struct {
	ID             string    `json:"_id"`
	VisitDate      Timestamp `json:"visitDate"`
	DoctorName     string    `json:"doctorName"`
	Complaints     string    `json:"complaints,omitempty"`
	Diagnosis      string    `json:"diagnosis,omitempty"`
	BloodPressure  string    `json:"bloodPressure,omitempty"`
	Temperature    string    `json:"temperature,omitempty"`
	Prescription   string    `json:"prescription,omitempty"`
	FollowUpDate   Timestamp `json:"followUpDate"`
	FollowUpNotes  string    `json:"followUpNotes,omitempty"`
	HasAttachments bool      `json:"hasAttachments,omitempty"`
}

// RecordSummary counts uploads by who uploaded them.
type RecordSummary struct {
	Doctor  int `json:"doctor"`
	Patient int `json:"patient"`
	Total   int `json:"total"`
}

// VisitEntry is a visit record with the prescriptions written during it.
type VisitEntry struct {
	MedicalRecord
	Prescriptions []Prescription `json:"prescriptions"`
}

// AppointmentRecords is everything the records modal shows for one appointment.
type AppointmentRecords struct {
	AppointmentID  string          `json:"appointmentId"`
	Summary        RecordSummary   `json:"summary"`
	DoctorUploads  []PatientRecord `json:"doctorUploads"`
	PatientUploads []PatientRecord `json:"patientUploads"`
	Visits         []VisitEntry    `json:"visits"`
}

// Empty reports whether there is nothing at all to show.
func (r AppointmentRecords) Empty() bool {
	return r.Summary.Total == 0 && len(r.Visits) == 0
}
