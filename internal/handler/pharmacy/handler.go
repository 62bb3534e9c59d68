package pharmacy

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/care-portal/internal/handler"
	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/service/notification"
	"github.com/jwalitptl/care-portal/internal/service/pharmacy"
	"github.com/jwalitptl/care-portal/pkg/httputil"
	"github.com/jwalitptl/care-portal/pkg/qr"
)

const maxFrameBytes = 8 << 20

type Handler struct {
	service *pharmacy.Service
	scanner *pharmacy.Scanner
}

func NewHandler(service *pharmacy.Service, scanner *pharmacy.Scanner) *Handler {
	return &Handler{service: service, scanner: scanner}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	ph := r.Group("/pharmacy")
	{
		ph.GET("/dashboard", h.Dashboard)

		ph.PATCH("/prescriptions/:id/status", h.UpdatePrescriptionStatus)

		ph.GET("/medicines/preview", h.PreviewStock)
		ph.POST("/medicines", h.AddMedicine)
		ph.PATCH("/medicines/:id", h.UpdateMedicine)
		ph.PATCH("/medicines/:id/stock", h.AdjustStock)
		ph.POST("/medicines/:id/delete-request", h.RequestDeleteMedicine)
		ph.POST("/medicines/delete/:token", h.ConfirmDeleteMedicine)

		views := ph.Group("/views/:view")
		views.GET("/prescriptions/:id", h.LookupPrescription)
		views.POST("/scan", h.StartScan)
		views.POST("/scan/frame", h.SubmitFrame)
		views.DELETE("/scan", h.StopScan)
	}
}

// RegisterQRRoutes serves prescription QR images to any signed-in user.
func (h *Handler) RegisterQRRoutes(r *gin.RouterGroup) {
	r.GET("/prescriptions/:id/qr.png", h.PrescriptionQR)
}

// viewRef reads the open view and its inventory controls from the query string.
func viewRef(c *gin.Context) pharmacy.ViewRef {
	var q model.InventoryQuery
	_ = c.ShouldBindQuery(&q)
	return pharmacy.ViewRef{ID: c.Query("view"), Query: q}
}

func (h *Handler) Dashboard(c *gin.Context) {
	sess, ok := handler.Session(c)
	if !ok {
		return
	}

	d, err := h.service.Dashboard(c.Request.Context(), sess, viewRef(c))
	if err != nil {
		handler.Fail(c, err, "Failed to load data")
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "", d)
}

type statusRequest struct {
	Status model.PrescriptionStatus `json:"status" binding:"required,rxstatus"`
}

func (h *Handler) UpdatePrescriptionStatus(c *gin.Context) {
	sess, ok := handler.Session(c)
	if !ok {
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, http.StatusBadRequest, "status must be Pending, Dispensed, PartiallyDispensed or Cancelled")
		return
	}

	d, err := h.service.UpdatePrescriptionStatus(c.Request.Context(), sess, viewRef(c), c.Param("id"), req.Status)
	if err != nil {
		handler.Fail(c, err, "Failed to update prescription")
		return
	}
	msg := notification.Success("✅ Prescription %s! Receipt sent to patient email.", req.Status).Message
	handler.Applied(c, http.StatusOK, msg, d)
}

type previewQuery struct {
	MedicineID string               `form:"medicineId" binding:"required"`
	Quantity   int                  `form:"quantity"`
	Operation  model.StockOperation `form:"operation" binding:"required,stockop"`
}

func (h *Handler) PreviewStock(c *gin.Context) {
	sess, ok := handler.Session(c)
	if !ok {
		return
	}

	var q previewQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httputil.RespondWithError(c, http.StatusBadRequest, "medicineId and operation (add or subtract) are required")
		return
	}

	p, err := h.service.PreviewAdjustment(c.Request.Context(), sess, q.MedicineID,
		model.StockAdjustment{Quantity: q.Quantity, Operation: q.Operation})
	if err != nil {
		handler.Fail(c, err, "Failed to load data")
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "", p)
}

func (h *Handler) AdjustStock(c *gin.Context) {
	sess, ok := handler.Session(c)
	if !ok {
		return
	}

	var adj model.StockAdjustment
	if err := c.ShouldBindJSON(&adj); err != nil {
		httputil.RespondWithError(c, http.StatusBadRequest, "Please enter quantity")
		return
	}

	d, err := h.service.AdjustStock(c.Request.Context(), sess, viewRef(c), c.Param("id"), adj)
	if err != nil {
		handler.Fail(c, err, "Failed to update stock")
		return
	}
	verb := "reduced"
	if adj.Operation == model.StockAdd {
		verb = "added"
	}
	handler.Applied(c, http.StatusOK, notification.Success("✅ Stock %s successfully!", verb).Message, d)
}

func (h *Handler) AddMedicine(c *gin.Context) {
	sess, ok := handler.Session(c)
	if !ok {
		return
	}

	var req model.MedicineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, http.StatusBadRequest, "Please fill in all required fields")
		return
	}

	d, err := h.service.AddMedicine(c.Request.Context(), sess, viewRef(c), req)
	if err != nil {
		handler.Fail(c, err, "Failed to add medicine")
		return
	}
	handler.Applied(c, http.StatusCreated, "✅ Medicine added successfully!", d)
}

func (h *Handler) UpdateMedicine(c *gin.Context) {
	sess, ok := handler.Session(c)
	if !ok {
		return
	}

	var patch model.MedicinePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		httputil.RespondWithError(c, http.StatusBadRequest, "invalid medicine update")
		return
	}

	d, err := h.service.UpdateMedicine(c.Request.Context(), sess, viewRef(c), c.Param("id"), patch)
	if err != nil {
		handler.Fail(c, err, "Failed to update medicine")
		return
	}
	handler.Applied(c, http.StatusOK, "✅ Medicine updated successfully!", d)
}

func (h *Handler) RequestDeleteMedicine(c *gin.Context) {
	sess, ok := handler.Session(c)
	if !ok {
		return
	}

	pending, err := h.service.RequestDeleteMedicine(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		handler.Fail(c, err, "Failed to delete medicine")
		return
	}
	httputil.RespondWithSuccess(c, http.StatusAccepted, "Are you sure you want to delete this medicine?", pending)
}

func (h *Handler) ConfirmDeleteMedicine(c *gin.Context) {
	sess, ok := handler.Session(c)
	if !ok {
		return
	}

	d, err := h.service.ConfirmDeleteMedicine(c.Request.Context(), sess, viewRef(c), c.Param("token"))
	if err != nil {
		handler.Fail(c, err, "Failed to delete medicine")
		return
	}
	handler.Applied(c, http.StatusOK, "✅ Medicine deleted successfully!", d)
}

type lookupResult struct {
	Prescription model.Prescription   `json:"prescription"`
	Pending      []model.Prescription `json:"pending"`
}

func (h *Handler) LookupPrescription(c *gin.Context) {
	sess, ok := handler.Session(c)
	if !ok {
		return
	}

	p, pending, err := h.service.LookupPrescription(c.Request.Context(), sess, c.Param("view"), c.Param("id"))
	if err != nil {
		handler.Fail(c, err, "Prescription not found")
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "✅ Prescription found!", lookupResult{Prescription: p, Pending: pending})
}

func (h *Handler) StartScan(c *gin.Context) {
	if _, ok := handler.Session(c); !ok {
		return
	}
	if err := h.scanner.Start(c.Param("view")); err != nil {
		handler.Fail(c, err, "Failed to start camera")
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, "", model.ScanResult{State: model.ScanScanning})
}

func (h *Handler) StopScan(c *gin.Context) {
	if _, ok := handler.Session(c); !ok {
		return
	}
	h.scanner.Stop(c.Param("view"))
	c.Status(http.StatusNoContent)
}

// SubmitFrame takes one camera frame, either as the multipart field "frame"
// or as a raw image body.
func (h *Handler) SubmitFrame(c *gin.Context) {
	sess, ok := handler.Session(c)
	if !ok {
		return
	}

	frame, err := readFrame(c)
	if err != nil {
		httputil.RespondWithError(c, http.StatusBadRequest, "a camera frame is required")
		return
	}

	res, err := h.scanner.SubmitFrame(c.Request.Context(), sess, c.Param("view"), frame)
	if err != nil {
		handler.Fail(c, err, "Prescription not found")
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, res.Message, res)
}

func readFrame(c *gin.Context) ([]byte, error) {
	if fh, err := c.FormFile("frame"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(io.LimitReader(f, maxFrameBytes))
	}
	frame, err := io.ReadAll(io.LimitReader(c.Request.Body, maxFrameBytes))
	if err != nil {
		return nil, err
	}
	if len(frame) == 0 {
		return nil, io.ErrUnexpectedEOF
	}
	return frame, nil
}

func (h *Handler) PrescriptionQR(c *gin.Context) {
	size := qr.DefaultSize
	if s := c.Query("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 64 || n > 1024 {
			httputil.RespondWithError(c, http.StatusBadRequest, "size must be between 64 and 1024")
			return
		}
		size = n
	}

	png, err := qr.Encode(c.Param("id"), size)
	if err != nil {
		handler.Fail(c, err, "Failed to generate QR code")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
