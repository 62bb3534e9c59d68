package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/care-portal/internal/model"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
	"github.com/jwalitptl/care-portal/pkg/metrics"
)

var testSession = Session{Token: "tok-123", Email: "jane@example.com", Role: RolePatient}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, Timeout: 5 * time.Second, BreakerFailures: 3}, opts...)
	require.NoError(t, err)
	return c
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)

	_, err = NewClient(Config{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestListAppointmentsSendsBearerToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/appointments", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"appointments":[{"_id":"a1","doctorName":"Dr. Rao","patientEmail":"jane@example.com","date":"2024-03-01T10:00:00.000Z","status":"accepted","mode":"online"}]}`)
	})

	appts, err := c.ListAppointments(context.Background(), testSession)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, "a1", appts[0].ID)
	assert.Equal(t, model.AppointmentStatusAccepted, appts[0].Status)
	assert.Equal(t, 2024, appts[0].Date.Year())
}

func TestListAppointmentsEmptyPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})

	appts, err := c.ListAppointments(context.Background(), testSession)
	require.NoError(t, err)
	assert.NotNil(t, appts)
	assert.Empty(t, appts)
}

func TestPatientPrescriptionsEscapesEmail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/prescriptions/patient/jane+x@example.com", r.URL.Path)
		_, _ = io.WriteString(w, `{"prescriptions":[{"_id":"p1","status":"Pending"}]}`)
	})

	list, err := c.ListPatientPrescriptions(context.Background(), testSession, "jane+x@example.com")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = c.ListPatientPrescriptions(context.Background(), testSession, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestAppointmentRecordsFallsBackToRecordsField(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"records":[{"_id":"r1","uploadedBy":"doctor","title":"X-ray"}],"fullRecords":[{"_id":"m1","doctorName":"Dr. Rao","visitDate":"2024-03-01"}]}`)
	})

	recs, err := c.ListAppointmentRecords(context.Background(), testSession, "a1")
	require.NoError(t, err)
	require.Len(t, recs.FileUploads, 1)
	assert.Equal(t, model.UploaderDoctor, recs.FileUploads[0].UploadedBy)
	require.Len(t, recs.FullRecords, 1)
	assert.Equal(t, 1, recs.FullRecords[0].VisitDate.Day())
}

func TestUploadPatientRecordMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Blood test", r.FormValue("title"))
		assert.Equal(t, "fasting", r.FormValue("description"))
		assert.Equal(t, "a1", r.FormValue("appointmentId"))
		assert.Equal(t, "patient", r.FormValue("uploadedBy"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "report.pdf", hdr.Filename)
		assert.Equal(t, "%PDF-1.4", string(body))

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"success":true}`)
	})

	err := c.UploadPatientRecord(context.Background(), testSession, RecordUpload{
		Title:         "Blood test",
		Description:   "fasting",
		AppointmentID: "a1",
		UploadedBy:    model.UploaderPatient,
		File:          File{Name: "report.pdf", ContentType: "application/pdf", Content: strings.NewReader("%PDF-1.4")},
	})
	assert.NoError(t, err)
}

func TestServerErrorMessageExtraction(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"error field", http.StatusBadRequest, `{"error":"File too large"}`, "File too large"},
		{"message field", http.StatusNotFound, `{"message":"Prescription not found"}`, "Prescription not found"},
		{"not json", http.StatusBadRequest, `<html>oops</html>`, "Upload failed"},
		{"empty", http.StatusForbidden, ``, "Upload failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			err := c.UploadPatientRecord(context.Background(), testSession, RecordUpload{
				Title: "t",
				File:  File{Name: "a.txt", Content: strings.NewReader("x")},
			})
			require.Error(t, err)
			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.ErrServer, appErr.Code)
			assert.Equal(t, tt.wantMsg, appErr.Message)
			assert.Equal(t, tt.status, apperrors.BackendStatus(err))
			assert.Equal(t, tt.status, appErr.StatusCode())
		})
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: url})
	require.NoError(t, err)

	_, err = c.ListMedicines(context.Background(), testSession)
	assert.True(t, apperrors.Is(err, apperrors.ErrTransport))
}

func TestBreakerOpensOnRepeated5xxButNot4xx(t *testing.T) {
	calls := 0
	status := http.StatusBadRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := c.ListMedicines(ctx, testSession)
		assert.True(t, apperrors.Is(err, apperrors.ErrServer))
	}
	assert.Equal(t, 5, calls)

	status = http.StatusInternalServerError
	for i := 0; i < 3; i++ {
		_, _ = c.ListMedicines(ctx, testSession)
	}
	assert.Equal(t, 8, calls)

	_, err := c.ListMedicines(ctx, testSession)
	assert.True(t, apperrors.Is(err, apperrors.ErrTransport))
	assert.Equal(t, 8, calls, "open breaker must not reach the backend")
}

func TestListWithOneOddDateDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"appointments":[
			{"_id":"a1","date":"2024-03-01T10:00:00.000Z","status":"accepted"},
			{"_id":"a2","date":"Fri Mar 01 2024 10:00:00 GMT+0000","status":"pending"},
			{"_id":"a3","date":"soon","status":"pending"}]}`)
	})

	appts, err := c.ListAppointments(context.Background(), testSession)
	require.NoError(t, err)
	require.Len(t, appts, 3)
	assert.Equal(t, 2024, appts[1].Date.Year())
	assert.True(t, appts[2].Date.IsZero())
}

func TestMalformedSuccessBodyDoesNotOpenBreaker(t *testing.T) {
	calls := 0
	healthy := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if healthy {
			_, _ = io.WriteString(w, `{"medicines":[{"_id":"m1","name":"Panadol"}]}`)
			return
		}
		_, _ = io.WriteString(w, `<html>gateway page</html>`)
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := c.ListMedicines(ctx, testSession)
		assert.True(t, apperrors.Is(err, apperrors.ErrDecode))
		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadGateway, appErr.StatusCode())
	}
	assert.Equal(t, 5, calls)

	healthy = true
	meds, err := c.ListMedicines(ctx, testSession)
	require.NoError(t, err)
	assert.Len(t, meds, 1)
	assert.Equal(t, 6, calls)
}

func TestGetPrescriptionMissingBodyIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/prescriptions/abc123", r.URL.Path)
		_, _ = io.WriteString(w, `{"prescription":null}`)
	})

	_, err := c.GetPrescription(context.Background(), testSession, "abc123")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestStockAndStatusBodies(t *testing.T) {
	var got []map[string]interface{}
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got = append(got, body)
		paths = append(paths, r.URL.Path)
	})
	ctx := context.Background()

	require.NoError(t, c.AdjustStock(ctx, testSession, "m1", model.StockAdjustment{Quantity: 15, Operation: model.StockSubtract}))
	require.NoError(t, c.UpdatePrescriptionStatus(ctx, testSession, "p1", model.PrescriptionStatusDispensed))

	assert.Equal(t, []string{"/api/pharmacy/medicines/m1/stock", "/api/prescriptions/p1/status"}, paths)
	assert.Equal(t, float64(15), got[0]["quantity"])
	assert.Equal(t, "subtract", got[0]["operation"])
	assert.Equal(t, "Dispensed", got[1]["status"])
}

func TestAnalyzeCaseSendsFieldsAndFiles(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Ravi", r.FormValue("patientName"))
		assert.Equal(t, "Male", r.FormValue("patientGender"))
		assert.Len(t, r.MultipartForm.File["medicalFiles"], 2)
		_, _ = io.WriteString(w, `{"analysis":"## Likely diagnosis"}`)
	})

	out, err := c.AnalyzeCase(context.Background(), testSession,
		model.CaseForm{PatientName: "Ravi", PatientAge: "40", PatientGender: "Male", Symptoms: "fever"},
		[]File{
			{Name: "ct.png", ContentType: "image/png", Content: strings.NewReader("png")},
			{Name: "lab.pdf", ContentType: "application/pdf", Content: strings.NewReader("pdf")},
		})
	require.NoError(t, err)
	assert.Equal(t, "## Likely diagnosis", out)
}

func TestMetricsRecorded(t *testing.T) {
	m := metrics.New("test", "backend", prometheus.NewRegistry())
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"pendingPrescriptions":3,"lowStockCount":1}`)
	}, WithMetrics(m))

	stats, err := c.PharmacyStats(context.Background(), testSession)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.PendingPrescriptions)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BackendRequests.WithLabelValues("pharmacy.stats", "ok")))
}
