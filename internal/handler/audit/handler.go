package audit

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/care-portal/internal/handler"
	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/service/audit"
	"github.com/jwalitptl/care-portal/pkg/httputil"
)

const maxLimit = 1000

type Handler struct {
	service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	audit := r.Group("/audit")
	{
		audit.GET("/logs", h.ListLogs)
		audit.GET("/export", h.ExportLogs)
	}
}

// filtersFrom reads actor, entity_type, action, start_date, end_date and limit.
func filtersFrom(c *gin.Context) (model.AuditFilters, error) {
	f := model.AuditFilters{
		ActorEmail: c.Query("actor"),
		EntityType: c.Query("entity_type"),
		Action:     c.Query("action"),
		Limit:      100,
	}

	if v := c.Query("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("invalid start_date format")
		}
		f.StartDate = t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("invalid end_date format")
		}
		f.EndDate = t
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxLimit {
			return f, fmt.Errorf("limit must be between 1 and %d", maxLimit)
		}
		f.Limit = n
	}
	return f, nil
}

func (h *Handler) ListLogs(c *gin.Context) {
	filters, err := filtersFrom(c)
	if err != nil {
		httputil.RespondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	logs, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		handler.Fail(c, err, "Failed to load audit logs")
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "", logs)
}

func (h *Handler) ExportLogs(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "json" {
		httputil.RespondWithError(c, http.StatusBadRequest, "unsupported format")
		return
	}

	filters, err := filtersFrom(c)
	if err != nil {
		httputil.RespondWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	filters.Limit = maxLimit

	logs, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		handler.Fail(c, err, "Failed to export audit logs")
		return
	}

	filename := fmt.Sprintf("audit_logs_%s.%s", time.Now().UTC().Format("20060102_150405"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	if format == "json" {
		c.JSON(http.StatusOK, logs)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)
	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"ID", "Actor", "Role", "Action", "Entity Type", "Entity ID", "Request ID", "IP Address", "Created At"})
	for _, l := range logs {
		_ = w.Write([]string{
			l.ID.String(),
			l.ActorEmail,
			l.ActorRole,
			l.Action,
			l.EntityType,
			l.EntityID,
			l.RequestID,
			l.IPAddress,
			l.CreatedAt.Format(time.RFC3339),
		})
	}
	w.Flush()
}
