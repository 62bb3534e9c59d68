package model

type PrescriptionStatus string

const (
	PrescriptionStatusPending            PrescriptionStatus = "Pending"
	PrescriptionStatusDispensed          PrescriptionStatus = "Dispensed"
	PrescriptionStatusPartiallyDispensed PrescriptionStatus = "PartiallyDispensed"
	PrescriptionStatusCancelled          PrescriptionStatus = "Cancelled"
)

var PrescriptionStatuses = []PrescriptionStatus{
	PrescriptionStatusPending,
	PrescriptionStatusDispensed,
	PrescriptionStatusPartiallyDispensed,
	PrescriptionStatusCancelled,
}

func (s PrescriptionStatus) Valid() bool {
	for _, v := range PrescriptionStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// MedicineEntry is one ordered line of a prescription.
type MedicineEntry struct {
	MedicineName string `json:"medicineName"`
	Dosage       string `json:"dosage,omitempty"`
	Frequency    string `json:"frequency,omitempty"`
	Duration     string `json:"duration,omitempty"`
	Quantity     int    `json:"quantity,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// Prescription as returned by the backend. Medicines are never modified by
// the portal; only Status changes (through the backend) and QRCode may be
// filled in for display.
type Prescription struct {
	ID                  string             `json:"_id"`
	PatientName         string             `json:"patientName"`
	PatientEmail        string             `json:"patientEmail"`
	DoctorID            string             `json:"doctor,omitempty"`
	DoctorName          string             `json:"doctorName"`
	CreatedAt           Timestamp          `json:"createdAt"`
	Diagnosis           string             `json:"diagnosis,omitempty"`
	Medicines           []MedicineEntry    `json:"medicines"`
	GeneralInstructions string             `json:"generalInstructions,omitempty"`
	DietaryAdvice       string             `json:"dietaryAdvice,omitempty"`
	Status              PrescriptionStatus `json:"status"`
	QRCode              string             `json:"qrCode,omitempty"`
	PatientRecordID     string             `json:"patientRecord,omitempty"`
	AppointmentID       string             `json:"appointment,omitempty"`
}

// ContainsPrescription reports whether list already has a prescription with id.
func ContainsPrescription(list []Prescription, id string) bool {
	for _, p := range list {
		if p.ID == id {
			return true
		}
	}
	return false
}
