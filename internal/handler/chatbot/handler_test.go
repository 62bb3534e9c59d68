package chatbot

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/care-portal/internal/middleware"
	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/repository/memory"
	"github.com/jwalitptl/care-portal/internal/service/audit"
	"github.com/jwalitptl/care-portal/internal/service/chatbot"
	"github.com/jwalitptl/care-portal/pkg/backend"
)

var doctor = backend.Session{Token: "tok", Email: "dr@example.com", Role: backend.RoleDoctor}

func setupRouter(t *testing.T, upstream http.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)
	client, err := backend.NewClient(backend.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	svc := chatbot.NewService(client, memory.NewTranscriptRepository(time.Hour), audit.Nop{}, zerolog.Nop())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextSession, doctor)
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1/portal"))
	return r
}

func caseRequest(t *testing.T, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, content := range files {
		part, err := mw.CreateFormFile("medicalFiles", name)
		require.NoError(t, err)
		_, _ = io.WriteString(part, content)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/portal/chatbot/c1/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func transcriptOf(t *testing.T, w *httptest.ResponseRecorder) model.Transcript {
	t.Helper()
	var env struct {
		Data model.Transcript `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Data
}

func TestAnalyzeForwardsCaseAndFiles(t *testing.T) {
	r := setupRouter(t, func(w http.ResponseWriter, req *http.Request) {
		require.NoError(t, req.ParseMultipartForm(1<<20))
		assert.Equal(t, "Ravi", req.FormValue("patientName"))
		assert.Equal(t, "Male", req.FormValue("patientGender"))
		assert.Len(t, req.MultipartForm.File["medicalFiles"], 1)
		_, _ = io.WriteString(w, `{"analysis":"**Likely** viral fever"}`)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, caseRequest(t, map[string]string{
		"patientName": "Ravi", "patientAge": "40", "symptoms": "fever",
	}, map[string]string{"cbc.pdf": "pdf"}))
	require.Equal(t, http.StatusOK, w.Code)

	tr := transcriptOf(t, w)
	assert.Equal(t, "c1", tr.ConversationID)
	require.Len(t, tr.Messages, 2)
	assert.Equal(t, model.ChatSenderUser, tr.Messages[0].Sender)
	assert.Equal(t, model.ChatSenderAI, tr.Messages[1].Sender)
	assert.Contains(t, tr.Messages[1].HTML, "<strong>Likely</strong>")
}

func TestAnalyzeBackendFailureStillAnswers(t *testing.T) {
	r := setupRouter(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, caseRequest(t, map[string]string{
		"patientName": "Ravi", "patientAge": "40", "symptoms": "fever",
	}, nil))
	require.Equal(t, http.StatusOK, w.Code)

	tr := transcriptOf(t, w)
	require.Len(t, tr.Messages, 2)
	assert.Contains(t, tr.Messages[1].Content, "Authentication failed. Please logout and login again.")
}

func TestAnalyzeRequiresFields(t *testing.T) {
	r := setupRouter(t, func(w http.ResponseWriter, req *http.Request) {
		t.Error("backend must not be called")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, caseRequest(t, map[string]string{"patientName": "Ravi"}, nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Please fill in patient name, age, and symptoms")
}

func TestTranscriptAndReset(t *testing.T) {
	r := setupRouter(t, func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.WriteString(w, `{"analysis":"ok"}`)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, caseRequest(t, map[string]string{
		"patientName": "Ravi", "patientAge": "40", "symptoms": "fever",
	}, nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/portal/chatbot/c1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, transcriptOf(t, w).Messages, 2)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/portal/chatbot/c1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/portal/chatbot/c1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, transcriptOf(t, w).Messages)
}
