package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/repository"
)

func TestTranscriptRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewTranscriptRepository(time.Minute)

	_, err := repo.Get(ctx, "c1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	msgs := []model.ChatMessage{{Sender: model.ChatSenderUser, Content: "hi"}}
	require.NoError(t, repo.Save(ctx, "c1", msgs))
	msgs[0].Content = "changed"

	got, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "hi", got[0].Content)

	require.NoError(t, repo.Delete(ctx, "c1"))
	_, err = repo.Get(ctx, "c1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTranscriptRepositoryExpires(t *testing.T) {
	ctx := context.Background()
	repo := NewTranscriptRepository(30 * time.Millisecond)
	require.NoError(t, repo.Save(ctx, "c1", []model.ChatMessage{{Content: "x"}}))

	assert.Eventually(t, func() bool {
		_, err := repo.Get(ctx, "c1")
		return err == repository.ErrNotFound
	}, time.Second, 10*time.Millisecond)
}
