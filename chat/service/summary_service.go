package service

import (
	"context"
	"fmt"
	"strings"

	"chat-messaging-demo/backend/chat/models"
	"chat-messaging-demo/backend/chat/repository"
	apperrors "chat-messaging-demo/backend/pkg/errors"
	"chat-messaging-demo/backend/pkg/logger"
)

// SummaryService maintains each conversation's sidebar digest: the
// last message's text, or a placeholder describing its attachments.
type SummaryService struct {
	conversations repository.ConversationRepository
	log           *logger.Logger
}

// NewSummaryService creates a summary service.
func NewSummaryService(conversations repository.ConversationRepository, log *logger.Logger) *SummaryService {
	return &SummaryService{
		conversations: conversations,
		log:           log.WithComponent("summary_service"),
	}
}

// ComposeDigest renders a message as one sidebar line. Text wins; an
// attachment-only message becomes a count plus a category noun
// ("2 Images", "1 File"), or "N Attachments" when categories are mixed.
func ComposeDigest(message *models.Message) string {
	if text := strings.TrimSpace(message.Text); text != "" {
		return text
	}
	n := len(message.Attachments)
	if n == 0 {
		return ""
	}

	category := message.Attachments[0].MimeCategory
	for _, a := range message.Attachments[1:] {
		if a.MimeCategory != category {
			if n == 1 {
				return "1 Attachment"
			}
			return fmt.Sprintf("%d Attachments", n)
		}
	}

	noun := category.DisplayNoun()
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// Apply updates the conversation digest for a newly stored message.
// The store refuses to move the digest backwards in time, so delayed
// calls for older messages are harmless no-ops. A failure here leaves
// the digest stale, never the message unsent.
func (s *SummaryService) Apply(ctx context.Context, conversationID string, message *models.Message) error {
	digest := ComposeDigest(message)
	if digest == "" {
		return apperrors.NewValidationError("cannot summarize a message with no content")
	}
	if err := s.conversations.UpdateSummary(ctx, conversationID, digest, message.CreatedAt); err != nil {
		s.log.LogError(err, "conversation digest update failed", "conversation_id", conversationID)
		return apperrors.NewSummaryStaleError("conversation digest is stale", err)
	}
	return nil
}
