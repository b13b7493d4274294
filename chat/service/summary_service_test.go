package service

import (
	"context"
	"testing"
	"time"

	"chat-messaging-demo/backend/chat/models"
	apperrors "chat-messaging-demo/backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeDigestTextWins(t *testing.T) {
	m := &models.Message{
		Text:        "  hello there  ",
		Attachments: models.AttachmentList{{MimeCategory: models.CategoryImage}},
	}
	assert.Equal(t, "hello there", ComposeDigest(m))
}

func TestComposeDigestAttachmentPlaceholders(t *testing.T) {
	image := models.Attachment{MimeCategory: models.CategoryImage}
	audio := models.Attachment{MimeCategory: models.CategoryAudio}
	other := models.Attachment{MimeCategory: models.CategoryOther}

	assert.Equal(t, "1 Image", ComposeDigest(&models.Message{Attachments: models.AttachmentList{image}}))
	assert.Equal(t, "2 Images", ComposeDigest(&models.Message{Attachments: models.AttachmentList{image, image}}))
	assert.Equal(t, "1 Audio Clip", ComposeDigest(&models.Message{Attachments: models.AttachmentList{audio}}))
	assert.Equal(t, "1 File", ComposeDigest(&models.Message{Attachments: models.AttachmentList{other}}))
	assert.Equal(t, "2 Attachments", ComposeDigest(&models.Message{Attachments: models.AttachmentList{image, audio}}))
}

func TestApplyUpdatesDigest(t *testing.T) {
	repo := newFakeConversationRepo()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(context.Background(), &models.Conversation{
		ID:            "conv-1",
		Participants:  models.Participants{"alice", "bob"},
		LastUpdatedAt: base,
	}))

	s := NewSummaryService(repo, testLog())
	err := s.Apply(context.Background(), "conv-1", &models.Message{
		Text:      "latest",
		CreatedAt: base.Add(time.Minute),
	})
	require.NoError(t, err)

	c, err := repo.GetByID(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "latest", c.LastMessageText)
	assert.Equal(t, base.Add(time.Minute), c.LastUpdatedAt)
}

func TestApplyNeverMovesDigestBackwards(t *testing.T) {
	repo := newFakeConversationRepo()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(context.Background(), &models.Conversation{
		ID:              "conv-1",
		Participants:    models.Participants{"alice", "bob"},
		LastMessageText: "newer",
		LastUpdatedAt:   base.Add(time.Hour),
	}))

	s := NewSummaryService(repo, testLog())
	err := s.Apply(context.Background(), "conv-1", &models.Message{
		Text:      "older straggler",
		CreatedAt: base,
	})
	require.NoError(t, err)

	c, _ := repo.GetByID(context.Background(), "conv-1")
	assert.Equal(t, "newer", c.LastMessageText)
	assert.Equal(t, base.Add(time.Hour), c.LastUpdatedAt)
}

func TestApplyStoreFailureIsSummaryStale(t *testing.T) {
	repo := newFakeConversationRepo()
	repo.failSummary = true

	s := NewSummaryService(repo, testLog())
	err := s.Apply(context.Background(), "conv-1", &models.Message{Text: "x", CreatedAt: time.Now()})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSummaryStale))
}
