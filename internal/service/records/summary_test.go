package records

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/care-portal/internal/model"
)

func ts(s string) model.Timestamp {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		panic(err)
	}
	return model.At(t)
}

func ids(list []model.Prescription) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		out = append(out, p.ID)
	}
	return out
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name    string
		uploads []model.PatientRecord
		want    model.RecordSummary
	}{
		{"empty", nil, model.RecordSummary{}},
		{
			"mixed",
			[]model.PatientRecord{
				{UploadedBy: model.UploaderDoctor},
				{UploadedBy: model.UploaderPatient},
				{UploadedBy: model.UploaderDoctor},
			},
			model.RecordSummary{Doctor: 2, Patient: 1, Total: 3},
		},
		{
			"unknown uploader counts as patient",
			[]model.PatientRecord{{UploadedBy: ""}, {UploadedBy: "nurse"}, {UploadedBy: model.UploaderDoctor}},
			model.RecordSummary{Doctor: 1, Patient: 2, Total: 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.uploads)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.Total, got.Doctor+got.Patient)
		})
	}
}

func TestPartitionKeepsOrder(t *testing.T) {
	doctor, patient := Partition([]model.PatientRecord{
		{ID: "1", UploadedBy: model.UploaderPatient},
		{ID: "2", UploadedBy: model.UploaderDoctor},
		{ID: "3", UploadedBy: model.UploaderPatient},
	})
	require.Len(t, doctor, 1)
	assert.Equal(t, "2", doctor[0].ID)
	require.Len(t, patient, 2)
	assert.Equal(t, "1", patient[0].ID)
	assert.Equal(t, "3", patient[1].ID)
}

func TestPrescriptionsForVisit(t *testing.T) {
	record := model.MedicalRecord{
		ID:         "r1",
		DoctorName: "Dr. Mehta",
		VisitDate:  ts("2024-03-01T10:00:00Z"),
	}
	list := []model.Prescription{
		{ID: "backref", PatientRecordID: "r1", DoctorName: "Dr. Other", CreatedAt: ts("2023-01-01T00:00:00Z")},
		{ID: "same-day", DoctorName: "Dr. Mehta", CreatedAt: ts("2024-03-01T18:30:00Z")},
		{ID: "next-day-utc", DoctorName: "Dr. Mehta", CreatedAt: ts("2024-03-02T01:00:00Z")},
		{ID: "other-doctor", DoctorName: "Dr. Rao", CreatedAt: ts("2024-03-01T11:00:00Z")},
		{ID: "case-differs", DoctorName: "dr. mehta", CreatedAt: ts("2024-03-01T11:00:00Z")},
		{ID: "no-date", DoctorName: "Dr. Mehta"},
	}

	assert.Equal(t, []string{"backref", "same-day"}, ids(PrescriptionsForVisit(record, list, time.UTC)))

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	// 01:00Z on the 2nd is still the evening of the 1st in New York.
	assert.Equal(t, []string{"backref", "same-day", "next-day-utc"}, ids(PrescriptionsForVisit(record, list, ny)))
}

func TestPrescriptionsForVisitNoMatches(t *testing.T) {
	got := PrescriptionsForVisit(model.MedicalRecord{ID: "r9", DoctorName: "Dr. X"}, []model.Prescription{{ID: "p"}}, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	// A record without date and doctor never matches on the heuristic.
	got = PrescriptionsForVisit(model.MedicalRecord{}, []model.Prescription{{ID: "p"}}, time.UTC)
	assert.Empty(t, got)
}

func TestPrescriptionForAppointment(t *testing.T) {
	appt := model.Appointment{
		ID:           "a1",
		PatientEmail: "jane@example.com",
		Date:         ts("2024-03-01T10:00:00Z"),
	}

	t.Run("back reference", func(t *testing.T) {
		p, ok := PrescriptionForAppointment(appt, []model.Prescription{
			{ID: "other", AppointmentID: "a2"},
			{ID: "linked", AppointmentID: "a1", PatientEmail: "someone@else.com"},
		})
		require.True(t, ok)
		assert.Equal(t, "linked", p.ID)
	})

	t.Run("email inside window", func(t *testing.T) {
		p, ok := PrescriptionForAppointment(appt, []model.Prescription{
			{ID: "close", PatientEmail: "jane@example.com", CreatedAt: ts("2024-03-08T09:59:59.999Z")},
		})
		require.True(t, ok)
		assert.Equal(t, "close", p.ID)
	})

	t.Run("exactly seven days is outside", func(t *testing.T) {
		_, ok := PrescriptionForAppointment(appt, []model.Prescription{
			{ID: "edge", PatientEmail: "jane@example.com", CreatedAt: ts("2024-03-08T10:00:00Z")},
			{ID: "before", PatientEmail: "jane@example.com", CreatedAt: ts("2024-02-23T10:00:00Z")},
		})
		assert.False(t, ok)
	})

	t.Run("first match wins", func(t *testing.T) {
		p, ok := PrescriptionForAppointment(appt, []model.Prescription{
			{ID: "by-email", PatientEmail: "jane@example.com", CreatedAt: ts("2024-02-28T10:00:00Z")},
			{ID: "by-ref", AppointmentID: "a1"},
		})
		require.True(t, ok)
		assert.Equal(t, "by-email", p.ID)
	})

	t.Run("email must match exactly", func(t *testing.T) {
		_, ok := PrescriptionForAppointment(appt, []model.Prescription{
			{ID: "x", PatientEmail: "Jane@Example.com", CreatedAt: ts("2024-03-01T10:00:00Z")},
		})
		assert.False(t, ok)
	})

	t.Run("no prescriptions", func(t *testing.T) {
		_, ok := PrescriptionForAppointment(appt, nil)
		assert.False(t, ok)
	})
}
