package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/repository"
	"github.com/jwalitptl/care-portal/pkg/security"
)

const keyPrefix = "portal:transcript:"

// transcriptRepository keeps chatbot transcripts in Redis, sealed with the
// configured key since they hold patient details.
type transcriptRepository struct {
	client *redis.Client
	sealer security.Encryptor
	ttl    time.Duration
}

func NewTranscriptRepository(client *redis.Client, sealer security.Encryptor, ttl time.Duration) repository.TranscriptRepository {
	return &transcriptRepository{client: client, sealer: sealer, ttl: ttl}
}

func (r *transcriptRepository) Get(ctx context.Context, conversationID string) ([]model.ChatMessage, error) {
	raw, err := r.client.Get(ctx, keyPrefix+conversationID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	return openTranscript(r.sealer, raw)
}

func (r *transcriptRepository) Save(ctx context.Context, conversationID string, messages []model.ChatMessage) error {
	sealed, err := sealTranscript(r.sealer, messages)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, keyPrefix+conversationID, sealed, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

func (r *transcriptRepository) Delete(ctx context.Context, conversationID string) error {
	if err := r.client.Del(ctx, keyPrefix+conversationID).Err(); err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	return nil
}

func sealTranscript(sealer security.Encryptor, messages []model.ChatMessage) ([]byte, error) {
	plain, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transcript: %w", err)
	}
	sealed, err := sealer.Encrypt(plain)
	if err != nil {
		return nil, fmt.Errorf("failed to seal transcript: %w", err)
	}
	return sealed, nil
}

func openTranscript(sealer security.Encryptor, sealed []byte) ([]model.ChatMessage, error) {
	plain, err := sealer.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	var messages []model.ChatMessage
	if err := json.Unmarshal(plain, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode transcript: %w", err)
	}
	return messages, nil
}
