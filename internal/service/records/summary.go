package records

import (
	"time"

	"github.com/jwalitptl/care-portal/internal/model"
)

// appointmentWindow is how close a prescription must be to an appointment's
// date to be linked by patient email alone.
const appointmentWindow = 7 * 24 * time.Hour

// Summarize counts uploads by uploader. Anything not uploaded by a doctor
// counts as a patient upload, so Doctor+Patient always equals Total.
func Summarize(uploads []model.PatientRecord) model.RecordSummary {
	var s model.RecordSummary
	for _, u := range uploads {
		if u.UploadedBy == model.UploaderDoctor {
			s.Doctor++
		} else {
			s.Patient++
		}
	}
	s.Total = len(uploads)
	return s
}

// Partition splits uploads the same way Summarize counts them, keeping order.
func Partition(uploads []model.PatientRecord) (doctor, patient []model.PatientRecord) {
	doctor = []model.PatientRecord{}
	patient = []model.PatientRecord{}
	for _, u := range uploads {
		if u.UploadedBy == model.UploaderDoctor {
			doctor = append(doctor, u)
		} else {
			patient = append(patient, u)
		}
	}
	return doctor, patient
}

// PrescriptionsForVisit returns the prescriptions written during a visit, in
// input order: those back-referencing the visit record, and those by the same
// doctor dated on the same calendar day in loc.
func PrescriptionsForVisit(record model.MedicalRecord, prescriptions []model.Prescription, loc *time.Location) []model.Prescription {
	if loc == nil {
		loc = time.Local
	}
	out := []model.Prescription{}
	for _, p := range prescriptions {
		if record.ID != "" && p.PatientRecordID == record.ID {
			out = append(out, p)
			continue
		}
		if record.DoctorName != "" && p.DoctorName == record.DoctorName &&
			sameDay(p.CreatedAt.Time, record.VisitDate.Time, loc) {
			out = append(out, p)
		}
	}
	return out
}

// PrescriptionForAppointment returns the first prescription linked to appt,
// either by back-reference or by patient email within seven days (exclusive)
// of the appointment date.
func PrescriptionForAppointment(appt model.Appointment, prescriptions []model.Prescription) (model.Prescription, bool) {
	for _, p := range prescriptions {
		if appt.ID != "" && p.AppointmentID == appt.ID {
			return p, true
		}
		if appt.PatientEmail != "" && p.PatientEmail == appt.PatientEmail &&
			within(p.CreatedAt.Time, appt.Date.Time, appointmentWindow) {
			return p, true
		}
	}
	return model.Prescription{}, false
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// within compares at millisecond precision, like the backend's timestamps.
func within(a, b time.Time, d time.Duration) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	diff := a.UnixMilli() - b.UnixMilli()
	if diff < 0 {
		diff = -diff
	}
	return diff < d.Milliseconds()
}
