package memory

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/repository"
)

// transcriptRepository keeps chatbot transcripts in process memory. Used
// when Redis is not configured; transcripts are lost on restart.
type transcriptRepository struct {
	cache *cache.Cache
}

func NewTranscriptRepository(ttl time.Duration) repository.TranscriptRepository {
	return &transcriptRepository{cache: cache.New(ttl, ttl/4)}
}

func (r *transcriptRepository) Get(_ context.Context, conversationID string) ([]model.ChatMessage, error) {
	v, ok := r.cache.Get(conversationID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneMessages(v.([]model.ChatMessage)), nil
}

func (r *transcriptRepository) Save(_ context.Context, conversationID string, messages []model.ChatMessage) error {
	r.cache.SetDefault(conversationID, cloneMessages(messages))
	return nil
}

func (r *transcriptRepository) Delete(_ context.Context, conversationID string) error {
	r.cache.Delete(conversationID)
	return nil
}

func cloneMessages(in []model.ChatMessage) []model.ChatMessage {
	out := make([]model.ChatMessage, len(in))
	copy(out, in)
	return out
}
