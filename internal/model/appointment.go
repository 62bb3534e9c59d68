package model

type AppointmentStatus string

const (
	AppointmentStatusPending  AppointmentStatus = "pending"
	AppointmentStatusAccepted AppointmentStatus = "accepted"
	AppointmentStatusRejected AppointmentStatus = "rejected"
)

type AppointmentMode string

const (
	AppointmentModeOnline   AppointmentMode = "online"
	AppointmentModeInClinic AppointmentMode = "in-clinic"
)

// Appointment is owned by the backend; the portal never mutates it.
type Appointment struct {
	ID              string            `json:"_id"`
	DoctorID        string            `json:"doctor,omitempty"`
	DoctorName      string            `json:"doctorName"`
	DoctorPhone     string            `json:"doctorPhone,omitempty"`
	Department      string            `json:"department,omitempty"`
	PatientName     string            `json:"patientName"`
	PatientEmail    string            `json:"patientEmail"`
	PatientPhone    string            `json:"patientPhone,omitempty"`
	Date            Timestamp         `json:"date"`
	DurationMinutes int               `json:"durationMinutes,omitempty"`
	Mode            AppointmentMode   `json:"mode"`
	Status          AppointmentStatus `json:"status"`
	Remarks         string            `json:"remarks,omitempty"`
}

// AppointmentRow is one line of the patient's appointment table.
type AppointmentRow struct {
	Appointment
	// Prescription is the shortcut match for this appointment, if any.
	Prescription *Prescription `json:"prescription,omitempty"`
}

// AppointmentsView is the patient's appointments page.
type AppointmentsView struct {
	Appointments  []AppointmentRow `json:"appointments"`
	Prescriptions []Prescription   `json:"prescriptions"`
	// Notice is set when part of the page could not be loaded.
	Notice *Notification `json:"notice,omitempty"`
}
