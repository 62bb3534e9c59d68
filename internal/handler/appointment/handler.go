package appointment

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/care-portal/internal/handler"
	"github.com/jwalitptl/care-portal/internal/service/appointment"
	"github.com/jwalitptl/care-portal/internal/service/records"
	"github.com/jwalitptl/care-portal/pkg/httputil"
)

type Handler struct {
	service *appointment.Service
	records *records.Service
}

func NewHandler(service *appointment.Service, rec *records.Service) *Handler {
	return &Handler{service: service, records: rec}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id/records", h.ListRecords)
		appointments.POST("/:id/records", h.UploadRecord)
	}

	recs := r.Group("/records")
	{
		recs.POST("/:id/delete-request", h.RequestDeleteRecord)
		recs.POST("/delete/:token", h.ConfirmDeleteRecord)
	}
}

func (h *Handler) ListAppointments(c *gin.Context) {
	sess, ok := handler.Session(c)
	if !ok {
		return
	}

	view, err := h.service.Load(c.Request.Context(), sess)
	if err != nil {
		handler.Fail(c, err, "Failed to load appointments")
		return
	}

	message := ""
	if view.Notice != nil {
		message = view.Notice.Message
	}
	httputil.RespondWithSuccess(c, http.StatusOK, message, view)
}

func (h *Handler) ListRecords(c *gin.Context) {
	sess, ok := handler.Session(c)
	if !ok {
		return
	}

	recs, err := h.service.Records(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		handler.Fail(c, err, "Failed to load patient records")
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "", recs)
}

func (h *Handler) UploadRecord(c *gin.Context) {
	sess, ok := handler.Session(c)
	if !ok {
		return
	}

	req := records.UploadRequest{
		AppointmentID: c.Param("id"),
		Title:         c.PostForm("title"),
		Description:   c.PostForm("description"),
	}
	if fh, err := c.FormFile("file"); err == nil {
		f, closer, err := handler.File(fh)
		if err != nil {
			httputil.RespondWithError(c, http.StatusBadRequest, "Failed to upload record")
			return
		}
		defer closer.Close()
		req.File = &f
	}

	recs, err := h.records.Upload(c.Request.Context(), sess, req)
	if err != nil {
		handler.Fail(c, err, "Failed to upload record")
		return
	}
	handler.Applied(c, http.StatusCreated, "Record uploaded successfully!", recs)
}

func (h *Handler) RequestDeleteRecord(c *gin.Context) {
	sess, ok := handler.Session(c)
	if !ok {
		return
	}

	pending, err := h.records.RequestDelete(c.Request.Context(), sess, c.Param("id"), c.Query("appointmentId"))
	if err != nil {
		handler.Fail(c, err, "Failed to delete record")
		return
	}
	httputil.RespondWithSuccess(c, http.StatusAccepted, "Are you sure you want to delete this record?", pending)
}

func (h *Handler) ConfirmDeleteRecord(c *gin.Context) {
	sess, ok := handler.Session(c)
	if !ok {
		return
	}

	recs, err := h.records.ConfirmDelete(c.Request.Context(), sess, c.Param("token"))
	if err != nil {
		handler.Fail(c, err, "Failed to delete record")
		return
	}
	handler.Applied(c, http.StatusOK, "Record deleted successfully", recs)
}
