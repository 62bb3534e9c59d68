package chatbot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/repository"
	"github.com/jwalitptl/care-portal/internal/service/audit"
	"github.com/jwalitptl/care-portal/pkg/backend"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
)

const (
	errorPrefix      = "❌ **Error:** Unable to analyze the medical case. "
	adviceAuth       = "Authentication failed. Please logout and login again."
	adviceNoSession  = "Please logout and login again to refresh your session."
	adviceConnection = "Please try again or check your connection."
)

// Backend is the part of the hospital API this service uses.
type Backend interface {
	AnalyzeCase(ctx context.Context, s backend.Session, form model.CaseForm, files []backend.File) (string, error)
}

type Service struct {
	backend     Backend
	transcripts repository.TranscriptRepository
	audit       audit.Recorder
	now         func() time.Time
	log         zerolog.Logger

	// mu serializes read-modify-write of transcripts.
	mu sync.Mutex
}

func NewService(b Backend, transcripts repository.TranscriptRepository, rec audit.Recorder, log zerolog.Logger) *Service {
	return &Service{
		backend:     b,
		transcripts: transcripts,
		audit:       rec,
		now:         time.Now,
		log:         log,
	}
}

// Analyze submits a patient case. The case summary and the analysis (or an
// error message) are appended to the conversation, which is returned whole.
// Only a missing required field or a transcript store failure is returned as
// an error; backend failures become part of the conversation.
func (s *Service) Analyze(ctx context.Context, sess backend.Session, conversationID string, form model.CaseForm, files []backend.File) (model.Transcript, error) {
	if conversationID == "" {
		return model.Transcript{}, apperrors.Validation("conversation id is required")
	}
	if strings.TrimSpace(form.PatientName) == "" || strings.TrimSpace(form.PatientAge) == "" || strings.TrimSpace(form.Symptoms) == "" {
		return model.Transcript{}, apperrors.Validation("Please fill in patient name, age, and symptoms")
	}
	if form.PatientGender == "" {
		form.PatientGender = model.DefaultPatientGender
	}

	key := storeKey(sess, conversationID)
	if _, err := s.append(ctx, key, s.message(model.ChatSenderUser, CaseSummary(form, len(files)))); err != nil {
		return model.Transcript{}, err
	}

	reply, err := s.analyze(ctx, sess, form, files)
	if err != nil {
		s.log.Error().Err(err).Str("conversation_id", conversationID).Msg("case analysis failed")
		reply = ErrorMessage(err)
	} else {
		s.audit.Record(ctx, audit.Entry{
			Session:    sess,
			Action:     model.AuditActionAnalyze,
			EntityType: model.AuditEntityChatCase,
			EntityID:   conversationID,
			Metadata:   map[string]int{"files": len(files)},
		})
	}

	messages, err := s.append(ctx, key, s.message(model.ChatSenderAI, reply))
	if err != nil {
		return model.Transcript{}, err
	}
	return model.Transcript{ConversationID: conversationID, Messages: messages}, nil
}

func (s *Service) analyze(ctx context.Context, sess backend.Session, form model.CaseForm, files []backend.File) (string, error) {
	if !sess.Authenticated() {
		return "", apperrors.Unauthorized(errNoToken)
	}
	return s.backend.AnalyzeCase(ctx, sess, form, files)
}

var errNoToken = errors.New("no authentication token")

// Transcript returns the conversation so far; unknown ids are empty.
func (s *Service) Transcript(ctx context.Context, sess backend.Session, conversationID string) (model.Transcript, error) {
	messages, err := s.load(ctx, storeKey(sess, conversationID))
	if err != nil {
		return model.Transcript{}, err
	}
	return model.Transcript{ConversationID: conversationID, Messages: messages}, nil
}

// Reset forgets the conversation.
func (s *Service) Reset(ctx context.Context, sess backend.Session, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.transcripts.Delete(ctx, storeKey(sess, conversationID)); err != nil {
		s.log.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to reset transcript")
		return apperrors.Internal(err)
	}
	return nil
}

// storeKey scopes conversations to the doctor who started them.
func storeKey(sess backend.Session, conversationID string) string {
	return sess.Email + "/" + conversationID
}

func (s *Service) append(ctx context.Context, key string, msg model.ChatMessage) ([]model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	messages = append(messages, msg)
	if err := s.transcripts.Save(ctx, key, messages); err != nil {
		s.log.Error().Err(err).Str("transcript", key).Msg("failed to save transcript")
		return nil, apperrors.Internal(err)
	}
	return messages, nil
}

func (s *Service) load(ctx context.Context, key string) ([]model.ChatMessage, error) {
	messages, err := s.transcripts.Get(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return []model.ChatMessage{}, nil
	}
	if err != nil {
		s.log.Error().Err(err).Str("transcript", key).Msg("failed to load transcript")
		return nil, apperrors.Internal(err)
	}
	return messages, nil
}

func (s *Service) message(sender model.ChatSender, content string) model.ChatMessage {
	msg := model.ChatMessage{Sender: sender, Content: content, Timestamp: s.now().UTC()}
	rendered, err := renderMarkdown(content)
	if err != nil {
		s.log.Warn().Err(err).Msg("markdown render failed")
		return msg
	}
	msg.HTML = rendered
	return msg
}

// CaseSummary is the user message shown for a submitted case.
func CaseSummary(form model.CaseForm, files int) string {
	var b strings.Builder
	b.WriteString("**Patient Analysis Request**\n\n")
	fmt.Fprintf(&b, "**Patient:** %s, %s years, %s\n\n", form.PatientName, form.PatientAge, form.PatientGender)
	fmt.Fprintf(&b, "**Symptoms:** %s\n\n", form.Symptoms)
	if form.MedicalHistory != "" {
		fmt.Fprintf(&b, "**Medical History:** %s\n\n", form.MedicalHistory)
	}
	if form.CurrentMedications != "" {
		fmt.Fprintf(&b, "**Current Medications:** %s\n\n", form.CurrentMedications)
	}
	if form.AdditionalNotes != "" {
		fmt.Fprintf(&b, "**Additional Notes:** %s\n\n", form.AdditionalNotes)
	}
	if files > 0 {
		fmt.Fprintf(&b, "**Attached Files:** %d medical document(s)", files)
	}
	return b.String()
}

// ErrorMessage is the ai message appended when an analysis fails.
func ErrorMessage(err error) string {
	switch {
	case apperrors.BackendStatus(err) == http.StatusUnauthorized:
		return errorPrefix + adviceAuth
	case errors.Is(err, errNoToken):
		return errorPrefix + adviceNoSession
	}
	if appErr, ok := apperrors.As(err); ok && appErr.Code == apperrors.ErrServer &&
		appErr.Message != "" && appErr.Message != backend.AnalyzeFailed {
		return errorPrefix + appErr.Message
	}
	return errorPrefix + adviceConnection
}
