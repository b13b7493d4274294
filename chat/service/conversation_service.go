package service

import (
	"context"
	"strings"
	"time"

	"chat-messaging-demo/backend/chat/models"
	"chat-messaging-demo/backend/chat/repository"
	apperrors "chat-messaging-demo/backend/pkg/errors"
	"chat-messaging-demo/backend/pkg/logger"
	"chat-messaging-demo/backend/upload"

	"github.com/google/uuid"
)

// Partner is the other side of a conversation as the sidebar shows it:
// a display name and a generated avatar.
type Partner struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// ConversationService manages conversation records and their
// participant views.
type ConversationService struct {
	conversations repository.ConversationRepository
	avatars       *upload.AvatarClient
	log           *logger.Logger
}

// NewConversationService creates a conversation service.
func NewConversationService(conversations repository.ConversationRepository, avatars *upload.AvatarClient, log *logger.Logger) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		avatars:       avatars,
		log:           log.WithComponent("conversation_service"),
	}
}

// Create starts a conversation. Exactly two participants; Other and
// the sidebar partner view are defined in terms of the pair.
func (s *ConversationService) Create(ctx context.Context, participants []string) (*models.Conversation, error) {
	cleaned := make(models.Participants, 0, len(participants))
	for _, p := range participants {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, apperrors.NewValidationError("participant name must not be empty")
		}
		cleaned = append(cleaned, p)
	}
	if len(cleaned) != 2 {
		return nil, apperrors.NewValidationError("a conversation has exactly two participants")
	}

	now := time.Now().UTC()
	conversation := &models.Conversation{
		ID:            uuid.NewString(),
		Participants:  cleaned,
		LastUpdatedAt: now,
		CreatedAt:     now,
	}
	if err := s.conversations.Create(ctx, conversation); err != nil {
		return nil, err
	}
	s.log.Info("conversation created", "conversation_id", conversation.ID, "participants", len(cleaned))
	return conversation, nil
}

// Get returns one conversation by id.
func (s *ConversationService) Get(ctx context.Context, id string) (*models.Conversation, error) {
	return s.conversations.GetByID(ctx, id)
}

// ListForUser returns the user's conversations, most recently active
// first.
func (s *ConversationService) ListForUser(ctx context.Context, user string) ([]models.Conversation, error) {
	return s.conversations.ListByParticipant(ctx, user)
}

// PartnerView derives the sidebar identity of the other participant.
func (s *ConversationService) PartnerView(ctx context.Context, conversation *models.Conversation, currentUser string) Partner {
	name := conversation.Participants.Other(currentUser)
	return Partner{Name: name, AvatarURL: s.avatars.ResolveURL(ctx, name, 40)}
}
