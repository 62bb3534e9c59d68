package model

import "time"

type ChatSender string

const (
	ChatSenderUser ChatSender = "user"
	ChatSenderAI   ChatSender = "ai"
)

type ChatMessage struct {
	Sender    ChatSender `json:"sender"`
	Content   string     `json:"content"`
	HTML      string     `json:"html,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

const DefaultPatientGender = "Male"

// CaseForm is the structured patient case a doctor submits for analysis.
type CaseForm struct {
	PatientName        string `form:"patientName" json:"patientName" validate:"required"`
	PatientAge         string `form:"patientAge" json:"patientAge" validate:"required"`
	PatientGender      string `form:"patientGender" json:"patientGender"`
	Symptoms           string `form:"symptoms" json:"symptoms" validate:"required"`
	MedicalHistory     string `form:"medicalHistory" json:"medicalHistory"`
	CurrentMedications string `form:"currentMedications" json:"currentMedications"`
	AdditionalNotes    string `form:"additionalNotes" json:"additionalNotes"`
}

// Fields returns the multipart fields in the order the backend expects.
func (f CaseForm) Fields() [][2]string {
	return [][2]string{
		{"patientName", f.PatientName},
		{"patientAge", f.PatientAge},
		{"patientGender", f.PatientGender},
		{"symptoms", f.Symptoms},
		{"medicalHistory", f.MedicalHistory},
		{"currentMedications", f.CurrentMedications},
		{"additionalNotes", f.AdditionalNotes},
	}
}

// Transcript is a chatbot conversation as returned to the doctor.
type Transcript struct {
	ConversationID string        `json:"conversationId"`
	Messages       []ChatMessage `json:"messages"`
}
