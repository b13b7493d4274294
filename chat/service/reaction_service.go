package service

import (
	"context"
	"errors"

	"chat-messaging-demo/backend/chat/models"
	"chat-messaging-demo/backend/chat/repository"
	"chat-messaging-demo/backend/chat/stream"
	apperrors "chat-messaging-demo/backend/pkg/errors"
	"chat-messaging-demo/backend/pkg/logger"
	"chat-messaging-demo/backend/shared/observability"

	"gorm.io/gorm"
)

// ReactionService toggles emoji reactions on stored messages. The
// toggle itself is a pure map transform; persistence serializes
// concurrent toggles on the same message through a row lock, so two
// users reacting simultaneously never overwrite each other.
type ReactionService struct {
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
	feed          stream.ChangeFeed
	log           *logger.Logger
	metrics       *observability.Metrics
}

// NewReactionService creates a reaction service.
func NewReactionService(messages repository.MessageRepository, conversations repository.ConversationRepository, feed stream.ChangeFeed, log *logger.Logger, metrics *observability.Metrics) *ReactionService {
	return &ReactionService{
		messages:      messages,
		conversations: conversations,
		feed:          feed,
		log:           log.WithComponent("reaction_service"),
		metrics:       metrics,
	}
}

// Toggle flips userID's reaction with emoji on the message. Toggling
// the same pair twice restores the original state. The user must be a
// participant and the message must belong to the conversation; the
// change notification then always reaches the right feed. Returns the
// updated message.
func (s *ReactionService) Toggle(ctx context.Context, conversationID, messageID, emoji, userID string) (*models.Message, error) {
	if emoji == "" {
		return nil, apperrors.NewValidationError("emoji must not be empty")
	}
	if userID == "" {
		return nil, apperrors.NewValidationError("user id must not be empty")
	}

	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewValidationError("conversation does not exist")
		}
		return nil, err
	}
	if !conversation.Participants.Contains(userID) {
		return nil, apperrors.NewValidationError("user is not a participant of this conversation")
	}

	updated, err := s.messages.UpdateReactions(ctx, conversationID, messageID, func(current models.ReactionMap) models.ReactionMap {
		return current.Toggled(emoji, userID)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewMessageNotFoundError("no such message in this conversation")
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ReactionToggles.Add(ctx, 1)
	}

	// Notify live streams. The reaction is durable at this point; a
	// failed publish only delays delivery until the next change.
	if err := s.feed.PublishChange(ctx, conversationID, messageID); err != nil {
		s.log.Warn("reaction change publish failed",
			"conversation_id", conversationID, "message_id", messageID, "error", err)
	}
	return updated, nil
}
