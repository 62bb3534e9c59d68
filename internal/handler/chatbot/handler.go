package chatbot

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/care-portal/internal/handler"
	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/service/chatbot"
	"github.com/jwalitptl/care-portal/pkg/httputil"
)

type Handler struct {
	service *chatbot.Service
}

func NewHandler(service *chatbot.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	chat := r.Group("/chatbot/:conversation")
	{
		chat.GET("", h.GetTranscript)
		chat.POST("/analyze", h.Analyze)
		chat.DELETE("", h.Reset)
	}
}

func (h *Handler) Analyze(c *gin.Context) {
	sess, ok := handler.Session(c)
	if !ok {
		return
	}

	var form model.CaseForm
	if err := c.ShouldBind(&form); err != nil {
		httputil.RespondWithError(c, http.StatusBadRequest, "Please fill in patient name, age, and symptoms")
		return
	}

	mf, err := c.MultipartForm()
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		httputil.RespondWithError(c, http.StatusBadRequest, "Invalid upload")
		return
	}
	attachments, closer, err := handler.Files(mf, "medicalFiles")
	if err != nil {
		httputil.RespondWithError(c, http.StatusBadRequest, "Invalid upload")
		return
	}
	defer closer.Close()

	transcript, err := h.service.Analyze(c.Request.Context(), sess, c.Param("conversation"), form, attachments)
	if err != nil {
		handler.Fail(c, err, "Unable to analyze the medical case")
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "", transcript)
}

func (h *Handler) GetTranscript(c *gin.Context) {
	sess, ok := handler.Session(c)
	if !ok {
		return
	}
	transcript, err := h.service.Transcript(c.Request.Context(), sess, c.Param("conversation"))
	if err != nil {
		handler.Fail(c, err, "Failed to load conversation")
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "", transcript)
}

func (h *Handler) Reset(c *gin.Context) {
	sess, ok := handler.Session(c)
	if !ok {
		return
	}
	if err := h.service.Reset(c.Request.Context(), sess, c.Param("conversation")); err != nil {
		handler.Fail(c, err, "Failed to clear conversation")
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "", nil)
}
