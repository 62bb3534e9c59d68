package pharmacy

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/care-portal/internal/confirm"
	"github.com/jwalitptl/care-portal/internal/middleware"
	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/service/audit"
	"github.com/jwalitptl/care-portal/internal/service/notification"
	"github.com/jwalitptl/care-portal/internal/service/pharmacy"
	"github.com/jwalitptl/care-portal/pkg/backend"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
	"github.com/jwalitptl/care-portal/pkg/httputil"
	"github.com/jwalitptl/care-portal/pkg/qr"
)

type fakeBackend struct {
	medicines    []model.Medicine
	pending      []model.Prescription
	prescription map[string]model.Prescription
	statusErr    error
	statsErr     error
	adjusted     []model.StockAdjustment
	deleted      []string
}

func (f *fakeBackend) PharmacyStats(context.Context, backend.Session) (model.PharmacyStats, error) {
	return model.PharmacyStats{PendingPrescriptions: len(f.pending)}, f.statsErr
}

func (f *fakeBackend) ListPendingPrescriptions(context.Context, backend.Session) ([]model.Prescription, error) {
	return append([]model.Prescription{}, f.pending...), nil
}

func (f *fakeBackend) ListMedicines(context.Context, backend.Session) ([]model.Medicine, error) {
	return append([]model.Medicine{}, f.medicines...), nil
}

func (f *fakeBackend) GetPrescription(_ context.Context, _ backend.Session, id string) (model.Prescription, error) {
	p, ok := f.prescription[id]
	if !ok {
		return model.Prescription{}, apperrors.Server(http.StatusNotFound, "Prescription not found")
	}
	return p, nil
}

func (f *fakeBackend) UpdatePrescriptionStatus(context.Context, backend.Session, string, model.PrescriptionStatus) error {
	return f.statusErr
}

func (f *fakeBackend) CreateMedicine(_ context.Context, _ backend.Session, m model.Medicine) (*model.Medicine, error) {
	m.ID = "m-new"
	f.medicines = append(f.medicines, m)
	return &m, nil
}

func (f *fakeBackend) UpdateMedicine(context.Context, backend.Session, string, model.MedicinePatch) error {
	return nil
}

func (f *fakeBackend) DeleteMedicine(_ context.Context, _ backend.Session, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBackend) AdjustStock(_ context.Context, _ backend.Session, _ string, adj model.StockAdjustment) error {
	f.adjusted = append(f.adjusted, adj)
	return nil
}

var pharmacist = backend.Session{Token: "tok", Email: "ph@example.com", Role: backend.RolePharmacist}

func setupRouter(t *testing.T, b *fakeBackend) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, middleware.RegisterValidators())

	svc := pharmacy.NewService(b, pharmacy.NewViewStore(time.Minute), confirm.NewStore(time.Minute, nil),
		audit.Nop{}, nil, zerolog.Nop())
	scanner := pharmacy.NewScanner(svc.LookupPrescription, time.Minute, zerolog.Nop())
	t.Cleanup(scanner.Close)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextSession, pharmacist)
		c.Next()
	})
	h := NewHandler(svc, scanner)
	api := r.Group("/api/v1/portal")
	h.RegisterRoutes(api)
	h.RegisterQRRoutes(api)
	return r
}

func newBackend() *fakeBackend {
	return &fakeBackend{
		medicines: []model.Medicine{
			{ID: "m1", Name: "Panadol", Category: "Painkiller", Price: 5, StockQuantity: 40, ReorderLevel: 50},
			{ID: "m2", Name: "Amoxil", Category: "Antibiotic", Price: 12, StockQuantity: 300, ReorderLevel: 100},
		},
		pending: []model.Prescription{{ID: "p1", Status: model.PrescriptionStatusPending}},
		prescription: map[string]model.Prescription{
			"p9": {ID: "p9", PatientName: "Asha", Status: model.PrescriptionStatusPending},
		},
	}
}

func do(r http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestDashboardAppliesQuery(t *testing.T) {
	r := setupRouter(t, newBackend())

	w := do(r, http.MethodGet, "/api/v1/portal/pharmacy/dashboard?view=v1&category=Antibiotic", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var d model.Dashboard
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &d))
	require.Len(t, d.Medicines, 1)
	assert.Equal(t, "Amoxil", d.Medicines[0].Name)
	assert.Len(t, d.LowStock, 1)
	assert.Equal(t, model.SortByName, d.Query.SortBy)
}

func TestUpdatePrescriptionStatus(t *testing.T) {
	b := newBackend()
	r := setupRouter(t, b)

	w := do(r, http.MethodPatch, "/api/v1/portal/pharmacy/prescriptions/p1/status", map[string]string{"status": "Dispensed"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "✅ Prescription Dispensed! Receipt sent to patient email.", decode(t, w).Message)

	w = do(r, http.MethodPatch, "/api/v1/portal/pharmacy/prescriptions/p1/status", map[string]string{"status": "Lost"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	b.statusErr = apperrors.Server(http.StatusConflict, "Insufficient stock")
	w = do(r, http.MethodPatch, "/api/v1/portal/pharmacy/prescriptions/p1/status", map[string]string{"status": "Dispensed"})
	assert.Equal(t, http.StatusConflict, w.Code)
	env := decode(t, w)
	assert.Equal(t, httputil.StatusError, env.Status)
	assert.Equal(t, "Insufficient stock", env.Message)
}

func TestAdjustStockMessages(t *testing.T) {
	b := newBackend()
	r := setupRouter(t, b)

	w := do(r, http.MethodPatch, "/api/v1/portal/pharmacy/medicines/m1/stock",
		model.StockAdjustment{Quantity: 10, Operation: model.StockAdd})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "✅ Stock added successfully!", decode(t, w).Message)

	w = do(r, http.MethodPatch, "/api/v1/portal/pharmacy/medicines/m1/stock",
		model.StockAdjustment{Quantity: 5, Operation: model.StockSubtract})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "✅ Stock reduced successfully!", decode(t, w).Message)
	assert.Len(t, b.adjusted, 2)

	w = do(r, http.MethodPatch, "/api/v1/portal/pharmacy/medicines/m1/stock",
		model.StockAdjustment{Operation: model.StockAdd})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please enter quantity", decode(t, w).Message)
}

func TestAdjustStockSucceedsWhenReloadFails(t *testing.T) {
	b := newBackend()
	b.statsErr = apperrors.Server(http.StatusInternalServerError, "stats down")
	r := setupRouter(t, b)

	w := do(r, http.MethodPatch, "/api/v1/portal/pharmacy/medicines/m1/stock",
		model.StockAdjustment{Quantity: 10, Operation: model.StockAdd})
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, httputil.StatusSuccess, env.Status)
	assert.Equal(t, "✅ Stock added successfully! "+notification.ReloadFailed, env.Message)
	assert.Empty(t, env.Data)
	assert.Len(t, b.adjusted, 1)
}

func TestPreviewStock(t *testing.T) {
	r := setupRouter(t, newBackend())

	w := do(r, http.MethodGet, "/api/v1/portal/pharmacy/medicines/preview?medicineId=m1&quantity=15&operation=subtract", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var p model.StockPreview
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &p))
	assert.Equal(t, 25, p.NewStock)

	w = do(r, http.MethodGet, "/api/v1/portal/pharmacy/medicines/preview?medicineId=m1&quantity=1&operation=multiply", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddMedicine(t *testing.T) {
	r := setupRouter(t, newBackend())

	w := do(r, http.MethodPost, "/api/v1/portal/pharmacy/medicines", map[string]interface{}{"name": "Ventolin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please fill in all required fields", decode(t, w).Message)

	w = do(r, http.MethodPost, "/api/v1/portal/pharmacy/medicines", map[string]interface{}{
		"name": "Ventolin", "strength": "100mcg", "price": 9.5, "stockQuantity": 20,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "✅ Medicine added successfully!", decode(t, w).Message)
}

func TestDeleteMedicineNeedsConfirmation(t *testing.T) {
	b := newBackend()
	r := setupRouter(t, b)

	w := do(r, http.MethodPost, "/api/v1/portal/pharmacy/medicines/m2/delete-request", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	env := decode(t, w)
	assert.Equal(t, "Are you sure you want to delete this medicine?", env.Message)
	assert.Empty(t, b.deleted)

	var pending confirm.Pending
	require.NoError(t, json.Unmarshal(env.Data, &pending))

	w = do(r, http.MethodPost, "/api/v1/portal/pharmacy/medicines/delete/"+pending.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "✅ Medicine deleted successfully!", decode(t, w).Message)
	assert.Equal(t, []string{"m2"}, b.deleted)

	w = do(r, http.MethodPost, "/api/v1/portal/pharmacy/medicines/delete/"+pending.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"m2"}, b.deleted)
}

func TestLookupPrescription(t *testing.T) {
	r := setupRouter(t, newBackend())

	w := do(r, http.MethodGet, "/api/v1/portal/pharmacy/views/v1/prescriptions/p9", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, "✅ Prescription found!", env.Message)

	var res lookupResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "p9", res.Prescription.ID)
	require.Len(t, res.Pending, 2)
	assert.Equal(t, "p9", res.Pending[0].ID)

	w = do(r, http.MethodGet, "/api/v1/portal/pharmacy/views/v1/prescriptions/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Prescription not found", decode(t, w).Message)
}

func TestScanFlow(t *testing.T) {
	r := setupRouter(t, newBackend())

	w := do(r, http.MethodPost, "/api/v1/portal/pharmacy/views/v1/scan", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(r, http.MethodPost, "/api/v1/portal/pharmacy/views/v1/scan", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	img, err := qr.Encode("p9", qr.DefaultSize)
	require.NoError(t, err)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("frame", "frame.png")
	require.NoError(t, err)
	_, _ = part.Write(img)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/portal/pharmacy/views/v1/scan/frame", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var res model.ScanResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.Equal(t, model.ScanFound, res.State)

	w = do(r, http.MethodDelete, "/api/v1/portal/pharmacy/views/v1/scan", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestSubmitFrameWithoutBody(t *testing.T) {
	r := setupRouter(t, newBackend())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/portal/pharmacy/views/v1/scan/frame", strings.NewReader(""))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPrescriptionQR(t *testing.T) {
	r := setupRouter(t, newBackend())

	w := do(r, http.MethodGet, "/api/v1/portal/prescriptions/p1/qr.png?size=128", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	img, err := png.Decode(w.Body)
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())

	w = do(r, http.MethodGet, "/api/v1/portal/prescriptions/p1/qr.png?size=9", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
